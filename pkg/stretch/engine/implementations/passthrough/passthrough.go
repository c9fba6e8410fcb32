// Package passthrough implements a pure-Go engine that does not perform any
// spectral processing: the output is the input delayed by the reported
// latency and linearly resampled to the requested output length.
//
// It behaves deterministically and reports latencies the same way a
// windowed engine would, which makes it useful for tests and for builds
// without a native backend.
package passthrough

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/stretch/pkg/stretch/engine"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/registry"
)

const (
	Name = "passthrough"

	presetDefaultBlockSeconds    = 0.12
	presetDefaultIntervalSeconds = 0.03
	presetCheaperBlockSeconds    = 0.1
	presetCheaperIntervalSeconds = 0.04
)

func init() {
	registry.RegisterFactory(0, Factory{})
}

type Factory struct{}

var _ engine.Factory = Factory{}

func (Factory) Name() string {
	return Name
}

func (Factory) Create(channels int, blockLength int, interval int) (engine.Engine, error) {
	return New(channels, blockLength, interval)
}

func (Factory) CreatePresetDefault(channels int, sampleRate float32) (engine.Engine, error) {
	return New(
		channels,
		int(presetDefaultBlockSeconds*float64(sampleRate)),
		int(presetDefaultIntervalSeconds*float64(sampleRate)),
	)
}

func (Factory) CreatePresetCheaper(channels int, sampleRate float32) (engine.Engine, error) {
	return New(
		channels,
		int(presetCheaperBlockSeconds*float64(sampleRate)),
		int(presetCheaperIntervalSeconds*float64(sampleRate)),
	)
}

type Passthrough struct {
	channels      int
	blockLength   int
	interval      int
	inputLatency  int
	outputLatency int

	transposeFactor float32
	tonalityLimit   float32

	// history holds interleaved frames not consumed yet; readPos is
	// a fractional frame index into it.
	history []float32
	readPos float64
}

var _ engine.Engine = (*Passthrough)(nil)

func New(channels int, blockLength int, interval int) (*Passthrough, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channels must be at least 1: got %d", channels)
	}
	if blockLength < 1 {
		return nil, fmt.Errorf("block length must be at least 1: got %d", blockLength)
	}
	if interval < 1 {
		return nil, fmt.Errorf("interval must be at least 1: got %d", interval)
	}
	e := &Passthrough{
		channels:      channels,
		blockLength:   blockLength,
		interval:      interval,
		inputLatency:  blockLength / 2,
		outputLatency: interval,

		transposeFactor: 1,
	}
	e.Reset()
	return e, nil
}

func (e *Passthrough) Reset() {
	e.history = make([]float32, e.delay()*e.channels)
	e.readPos = 0
}

func (e *Passthrough) delay() int {
	return e.inputLatency + e.outputLatency
}

func (e *Passthrough) BlockLength() int {
	return e.blockLength
}

func (e *Passthrough) Interval() int {
	return e.interval
}

func (e *Passthrough) InputLatency() int {
	return e.inputLatency
}

func (e *Passthrough) OutputLatency() int {
	return e.outputLatency
}

func (e *Passthrough) SetTransposeFactor(multiplier float32, tonalityLimit float32) {
	e.transposeFactor = multiplier
	e.tonalityLimit = tonalityLimit
}

func (e *Passthrough) SetTransposeSemitones(semitones float32, tonalityLimit float32) {
	e.SetTransposeFactor(float32(math.Exp2(float64(semitones)/12)), tonalityLimit)
}

// TransposeFactor returns the values set by the last transpose call.
// They are not applied to the signal.
func (e *Passthrough) TransposeFactor() (multiplier float32, tonalityLimit float32) {
	return e.transposeFactor, e.tonalityLimit
}

// Seek shifts the given frames into the input side of the delay line, so
// the last of them directly precedes the next processed frame. Frames
// already on the output side are kept. The playback rate does not affect
// a delay line.
func (e *Passthrough) Seek(input []float32, frames int, playbackRate float64) {
	if frames > e.inputLatency {
		input = input[(frames-e.inputLatency)*e.channels:]
		frames = e.inputLatency
	}
	inputSide := e.history[e.outputLatency*e.channels : e.delay()*e.channels]
	kept := copy(inputSide, inputSide[frames*e.channels:])
	copy(inputSide[kept:], input[:frames*e.channels])
}

func (e *Passthrough) Process(input []float32, inputFrames int, output []float32, outputFrames int) {
	e.history = append(e.history, input[:inputFrames*e.channels]...)

	available := len(e.history) / e.channels
	step := 0.0
	if outputFrames > 0 {
		step = float64(inputFrames) / float64(outputFrames)
	}
	for i := 0; i < outputFrames; i++ {
		pos := e.readPos + float64(i)*step
		idx := int(pos)
		frac := float32(pos - float64(idx))
		a := e.frame(idx, available)
		out := output[i*e.channels : (i+1)*e.channels]
		if frac == 0 {
			copy(out, a)
			continue
		}
		b := e.frame(idx+1, available)
		for ch := range out {
			out[ch] = a[ch] + (b[ch]-a[ch])*frac
		}
	}

	e.readPos += float64(inputFrames)
	consumed := int(e.readPos)
	if consumed > available-1 {
		consumed = available - 1
	}
	if consumed > 0 {
		e.history = append(e.history[:0], e.history[consumed*e.channels:]...)
		e.readPos -= float64(consumed)
	}
}

func (e *Passthrough) frame(idx int, available int) []float32 {
	if idx >= available {
		idx = available - 1
	}
	return e.history[idx*e.channels : (idx+1)*e.channels]
}

// Flush emits the frames still held by the delay line.
func (e *Passthrough) Flush(output []float32, frames int) {
	e.Process(make([]float32, frames*e.channels), frames, output, frames)
}

func (e *Passthrough) Destroy() {
	e.history = nil
}
