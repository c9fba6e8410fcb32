//go:build signalsmith
// +build signalsmith

// Package signalsmith binds the Signalsmith Stretch C++ library.
//
// The library is header-only; point the compiler to it with
// CGO_CXXFLAGS="-I/path/to/signalsmith-stretch" if it is not installed
// system-wide.
package signalsmith

import (
	"fmt"
	"unsafe"

	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/audio/planar"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/registry"
)

/*
#cgo CXXFLAGS: -std=c++11 -O3
#cgo LDFLAGS: -lstdc++ -lm
#include "shim.h"
*/
import "C"

const Name = "signalsmith"

func init() {
	registry.RegisterFactory(100, Factory{})
}

type Factory struct{}

var _ engine.Factory = Factory{}

func (Factory) Name() string {
	return Name
}

func (Factory) Create(channels int, blockLength int, interval int) (engine.Engine, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channels must be at least 1: got %d", channels)
	}
	return wrap(channels, C.sstretch_create(C.int(channels), C.int(blockLength), C.int(interval)))
}

func (Factory) CreatePresetDefault(channels int, sampleRate float32) (engine.Engine, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channels must be at least 1: got %d", channels)
	}
	return wrap(channels, C.sstretch_create_preset_default(C.int(channels), C.float(sampleRate)))
}

func (Factory) CreatePresetCheaper(channels int, sampleRate float32) (engine.Engine, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channels must be at least 1: got %d", channels)
	}
	return wrap(channels, C.sstretch_create_preset_cheaper(C.int(channels), C.float(sampleRate)))
}

func wrap(channels int, s *C.sstretch) (*Signalsmith, error) {
	if s == nil {
		return nil, fmt.Errorf("unable to initialize the signalsmith stretcher")
	}
	return &Signalsmith{
		instance: s,
		channels: channels,
	}, nil
}

type Signalsmith struct {
	instance *C.sstretch
	channels int

	// the native side expects planar buffers, these are reused between calls
	inputPlanar  []float32
	outputPlanar []float32
}

var _ engine.Engine = (*Signalsmith)(nil)

func (s *Signalsmith) Reset() {
	C.sstretch_reset(s.instance)
}

func (s *Signalsmith) InputLatency() int {
	return int(C.sstretch_input_latency(s.instance))
}

func (s *Signalsmith) OutputLatency() int {
	return int(C.sstretch_output_latency(s.instance))
}

func (s *Signalsmith) SetTransposeFactor(multiplier float32, tonalityLimit float32) {
	C.sstretch_set_transpose_factor(s.instance, C.float(multiplier), C.float(tonalityLimit))
}

func (s *Signalsmith) SetTransposeSemitones(semitones float32, tonalityLimit float32) {
	C.sstretch_set_transpose_semitones(s.instance, C.float(semitones), C.float(tonalityLimit))
}

func (s *Signalsmith) Seek(input []float32, frames int, playbackRate float64) {
	in := s.planarize(input, frames)
	C.sstretch_seek(s.instance, floatPtr(in), C.int(frames), C.double(playbackRate))
}

func (s *Signalsmith) Process(input []float32, inputFrames int, output []float32, outputFrames int) {
	in := s.planarize(input, inputFrames)
	out := s.outputBuffer(outputFrames)
	C.sstretch_process(s.instance, floatPtr(in), C.int(inputFrames), floatPtr(out), C.int(outputFrames))
	s.unplanarize(output, out, outputFrames)
}

func (s *Signalsmith) Flush(output []float32, frames int) {
	out := s.outputBuffer(frames)
	C.sstretch_flush(s.instance, floatPtr(out), C.int(frames))
	s.unplanarize(output, out, frames)
}

func (s *Signalsmith) Destroy() {
	C.sstretch_destroy(s.instance)
	s.instance = nil
}

func (s *Signalsmith) planarize(input []float32, frames int) []float32 {
	size := frames * s.channels
	if cap(s.inputPlanar) < size {
		s.inputPlanar = make([]float32, size)
	}
	buf := s.inputPlanar[:size]
	if err := planar.Planarize(audio.Channel(s.channels), buf, input[:size]); err != nil {
		panic(err)
	}
	return buf
}

func (s *Signalsmith) outputBuffer(frames int) []float32 {
	size := frames * s.channels
	if cap(s.outputPlanar) < size {
		s.outputPlanar = make([]float32, size)
	}
	return s.outputPlanar[:size]
}

func (s *Signalsmith) unplanarize(output []float32, buf []float32, frames int) {
	if err := planar.Unplanarize(audio.Channel(s.channels), output[:frames*s.channels], buf); err != nil {
		panic(err)
	}
}

func floatPtr(buf []float32) *C.float {
	if len(buf) == 0 {
		return nil
	}
	return (*C.float)(unsafe.Pointer(unsafe.SliceData(buf)))
}
