package stretch

import (
	"errors"
	"fmt"

	"github.com/xaionaro-go/stretch/pkg/stretch/engine"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/registry"
)

func init() {
	// always fails, so the automatic selection has to fall back to the next one
	registry.RegisterFactory(1000, brokenFactory{})
}

type brokenFactory struct{}

var errBroken = errors.New("broken")

func (brokenFactory) Name() string { return "broken" }
func (brokenFactory) Create(int, int, int) (engine.Engine, error) {
	return nil, errBroken
}
func (brokenFactory) CreatePresetDefault(int, float32) (engine.Engine, error) {
	return nil, errBroken
}
func (brokenFactory) CreatePresetCheaper(int, float32) (engine.Engine, error) {
	return nil, errBroken
}

type fakeFactory struct {
	Created   []string
	Engines   []*fakeEngine
	Err       error
	ReturnNil bool
	OnProcess func(*fakeEngine)
}

var _ engine.Factory = (*fakeFactory)(nil)

func (f *fakeFactory) Name() string { return "fake" }

func (f *fakeFactory) new(channels int, desc string) (engine.Engine, error) {
	f.Created = append(f.Created, desc)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.ReturnNil {
		return nil, nil
	}
	e := &fakeEngine{
		Channels:           channels,
		InputLatencyValue:  7,
		OutputLatencyValue: 5,
		OnProcess:          f.OnProcess,
	}
	f.Engines = append(f.Engines, e)
	return e, nil
}

func (f *fakeFactory) Create(channels int, blockLength int, interval int) (engine.Engine, error) {
	return f.new(channels, fmt.Sprintf("explicit %d %d %d", channels, blockLength, interval))
}

func (f *fakeFactory) CreatePresetDefault(channels int, sampleRate float32) (engine.Engine, error) {
	return f.new(channels, fmt.Sprintf("preset_default %d %g", channels, sampleRate))
}

func (f *fakeFactory) CreatePresetCheaper(channels int, sampleRate float32) (engine.Engine, error) {
	return f.new(channels, fmt.Sprintf("preset_cheaper %d %g", channels, sampleRate))
}

type fakeEngine struct {
	Channels           int
	InputLatencyValue  int
	OutputLatencyValue int

	ResetCount   int
	DestroyCount int

	TransposeFactor    float32
	TransposeSemitones float32
	TonalityLimit      float32

	SeekFrames    []int
	SeekRate      float64
	ProcessFrames [][2]int
	FlushFrames   []int

	OnProcess func(*fakeEngine)
}

var _ engine.Engine = (*fakeEngine)(nil)

func (e *fakeEngine) Reset()             { e.ResetCount++ }
func (e *fakeEngine) InputLatency() int  { return e.InputLatencyValue }
func (e *fakeEngine) OutputLatency() int { return e.OutputLatencyValue }

func (e *fakeEngine) SetTransposeFactor(multiplier float32, tonalityLimit float32) {
	e.TransposeFactor = multiplier
	e.TonalityLimit = tonalityLimit
}

func (e *fakeEngine) SetTransposeSemitones(semitones float32, tonalityLimit float32) {
	e.TransposeSemitones = semitones
	e.TonalityLimit = tonalityLimit
}

func (e *fakeEngine) Seek(input []float32, frames int, playbackRate float64) {
	_ = input[:frames*e.Channels]
	e.SeekFrames = append(e.SeekFrames, frames)
	e.SeekRate = playbackRate
}

func (e *fakeEngine) Process(input []float32, inputFrames int, output []float32, outputFrames int) {
	_ = input[:inputFrames*e.Channels]
	_ = output[:outputFrames*e.Channels]
	e.ProcessFrames = append(e.ProcessFrames, [2]int{inputFrames, outputFrames})
	if e.OnProcess != nil {
		e.OnProcess(e)
	}
}

func (e *fakeEngine) Flush(output []float32, frames int) {
	_ = output[:frames*e.Channels]
	e.FlushFrames = append(e.FlushFrames, frames)
}

func (e *fakeEngine) Destroy() {
	e.DestroyCount++
}
