package stretch

import (
	"context"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/stretch/pkg/audio/level"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/implementations/passthrough"
)

func newPassthrough(t *testing.T, cfg Config) *Stretch {
	s, err := New(context.Background(), cfg, WithEngineFactory(passthrough.Factory{}))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sine(frames int, channels int, freq float64, sampleRate float64) []float32 {
	result := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
		for ch := 0; ch < channels; ch++ {
			result[i*channels+ch] = v
		}
	}
	return result
}

// feed runs the same call sequence on any handle and returns all the output.
func feed(t *testing.T, s *Stretch, input []float32, chunkFrames int, ratio float64) []float32 {
	ctx := context.Background()
	channels := int(s.Channels())
	var result []float32
	for offset := 0; offset < len(input); offset += chunkFrames * channels {
		end := min(offset+chunkFrames*channels, len(input))
		chunk := input[offset:end]
		output := make([]float32, int(float64(len(chunk)/channels)*ratio)*channels)
		require.NoError(t, s.Process(ctx, chunk, output))
		result = append(result, output...)
	}
	return result
}

func TestConstructionDeterminism(t *testing.T) {
	for _, cfg := range []Config{
		ConfigExplicit{Channels: 2, BlockLength: 256, Interval: 64},
		ConfigPresetDefault{Channels: 2, SampleRate: 8000},
		ConfigPresetCheaper{Channels: 1, SampleRate: 8000},
	} {
		t.Run(cfg.String(), func(t *testing.T) {
			input := sine(3000, int(cfg.ChannelCount()), 440, 8000)
			a := feed(t, newPassthrough(t, cfg), input, 333, 1.5)
			b := feed(t, newPassthrough(t, cfg), input, 333, 1.5)
			require.Equal(t, a, b)
			assert.Greater(t, level.Energy(a), 0.0)
		})
	}
}

func TestCloneResetsStateNotConfig(t *testing.T) {
	ctx := context.Background()
	cfg := ConfigExplicit{Channels: 2, BlockLength: 64, Interval: 16}
	input := sine(1000, 2, 1000, 8000)

	original := newPassthrough(t, cfg)
	feed(t, original, input[:500*2], 100, 1)

	clone, err := original.Clone(ctx)
	require.NoError(t, err)
	defer clone.Close()
	assert.Equal(t, cfg, clone.Config())

	fresh := newPassthrough(t, cfg)

	fromClone := feed(t, clone, input[500*2:], 100, 1)
	fromFresh := feed(t, fresh, input[500*2:], 100, 1)
	fromOriginal := feed(t, original, input[500*2:], 100, 1)

	assert.Equal(t, fromFresh, fromClone)
	assert.NotEqual(t, fromOriginal, fromClone, "the clone must not continue the history of the original")
}

func TestFlushSizedByOutputLatency(t *testing.T) {
	ctx := context.Background()
	const channels = 2
	s := newPassthrough(t, ConfigExplicit{Channels: channels, BlockLength: 40, Interval: 10})

	outputLatency, err := s.OutputLatency()
	require.NoError(t, err)
	inputLatency, err := s.InputLatency()
	require.NoError(t, err)

	input := make([]float32, 200*channels)
	for i := range input {
		input[i] = float32(i%97) + 1
	}
	processed := feed(t, s, input, 37, 1)

	// feed the input latency worth of silence, so only the output latency remains
	tail := make([]float32, inputLatency*channels)
	require.NoError(t, s.Process(ctx, make([]float32, inputLatency*channels), tail))

	flushed := make([]float32, outputLatency*channels)
	for i := range flushed {
		flushed[i] = float32(math.NaN())
	}
	require.NoError(t, s.Flush(ctx, flushed))
	for i, v := range flushed {
		require.False(t, math.IsNaN(float64(v)), "sample %d was not written", i)
	}

	all := append(append(processed, tail...), flushed...)
	delay := (inputLatency + outputLatency) * channels
	require.Equal(t, input, all[delay:], spew.Sdump(all[len(all)-delay:]))
}

func TestFloorDivision(t *testing.T) {
	ctx := context.Background()
	const channels = 3
	cfg := ConfigExplicit{Channels: channels, BlockLength: 20, Interval: 5}
	input := sine(50, channels, 300, 8000)

	for r := 1; r < channels; r++ {
		exact := newPassthrough(t, cfg)
		ragged := newPassthrough(t, cfg)

		require.NoError(t, exact.Seek(ctx, input[:10*channels], 1))
		require.NoError(t, ragged.Seek(ctx, input[:10*channels+r], 1))

		outExact := make([]float32, 40*channels)
		outRagged := make([]float32, 40*channels+r)
		require.NoError(t, exact.Process(ctx, input[10*channels:], outExact))
		require.NoError(t, ragged.Process(ctx, append(append([]float32{}, input[10*channels:]...), make([]float32, r)...), outRagged))

		assert.Equal(t, outExact, outRagged[:40*channels])
		for _, v := range outRagged[40*channels:] {
			assert.Zero(t, v, "the trailing partial frame must not be written")
		}
	}
}

func TestResetThenFlush(t *testing.T) {
	ctx := context.Background()
	cfg := ConfigPresetCheaper{Channels: 2, SampleRate: 8000}

	fresh := newPassthrough(t, cfg)
	used := newPassthrough(t, cfg)
	feed(t, used, sine(2000, 2, 440, 8000), 256, 0.75)

	require.NoError(t, used.Reset(ctx))
	require.NoError(t, used.Reset(ctx))

	outputLatency, err := fresh.OutputLatency()
	require.NoError(t, err)

	a := make([]float32, outputLatency*2)
	b := make([]float32, outputLatency*2)
	require.NoError(t, fresh.Flush(ctx, a))
	require.NoError(t, used.Flush(ctx, b))
	assert.Equal(t, a, b)
	assert.Zero(t, level.Peak(b))
}

func TestTransposeNoOp(t *testing.T) {
	ctx := context.Background()
	const channels = 2
	s := newPassthrough(t, ConfigExplicit{Channels: channels, BlockLength: 32, Interval: 8})
	require.NoError(t, s.SetTransposeFactor(ctx, 1.0, NoTonalityLimit()))

	inputLatency, err := s.InputLatency()
	require.NoError(t, err)
	outputLatency, err := s.OutputLatency()
	require.NoError(t, err)
	delay := inputLatency + outputLatency

	input := sine(500, channels, 440, 8000)
	output := make([]float32, len(input))
	require.NoError(t, s.Process(ctx, input, output))

	assert.InDeltaSlice(t, toFloat64(input[:len(input)-delay*channels]), toFloat64(output[delay*channels:]), 1e-6)
	assert.Zero(t, level.Peak(output[:delay*channels]))
}

func TestEndToEndPresetDefault(t *testing.T) {
	ctx := context.Background()
	const (
		channels   = 2
		sampleRate = 44100
		frames     = 4410
	)
	s, err := NewPresetDefault(ctx, channels, sampleRate, WithEngineFactory(passthrough.Factory{}))
	require.NoError(t, err)
	defer s.Close()

	input := sine(frames, channels, 440, sampleRate)
	output := make([]float32, len(input))
	require.NoError(t, s.Process(ctx, input, output))
	assert.Greater(t, level.Energy(output), 0.0)

	outputLatency, err := s.OutputLatency()
	require.NoError(t, err)
	assert.Equal(t, passthrough.Factory{}.Name(), s.EngineName())
	assert.Equal(t, 1323, outputLatency)

	flushed := make([]float32, outputLatency*channels)
	require.NoError(t, s.Flush(ctx, flushed))
	assert.Greater(t, level.Energy(flushed), 0.0)
}

func toFloat64(s []float32) []float64 {
	result := make([]float64, len(s))
	for i, v := range s {
		result[i] = float64(v)
	}
	return result
}
