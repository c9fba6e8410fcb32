package stretch_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/stretch/pkg/alignment"
	"github.com/xaionaro-go/stretch/pkg/stretch"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/implementations/passthrough"
)

func TestMeasuredLatencyMatchesReported(t *testing.T) {
	ctx := context.Background()
	const (
		channels   = 2
		sampleRate = 8000
		frames     = 8000
	)

	s, err := stretch.NewPresetCheaper(ctx, channels, sampleRate, stretch.WithEngineFactory(passthrough.Factory{}))
	require.NoError(t, err)
	defer s.Close()

	rng := rand.New(rand.NewSource(0))
	input := make([]float32, frames*channels)
	for i := range input {
		input[i] = float32(rng.Float64()*2 - 1)
	}
	output := make([]float32, len(input))
	require.NoError(t, s.Process(ctx, input, output))

	inputLatency, err := s.InputLatency()
	require.NoError(t, err)
	outputLatency, err := s.OutputLatency()
	require.NoError(t, err)

	result, err := alignment.EstimateDelay(ctx, input, output, channels, sampleRate, alignment.Options{})
	require.NoError(t, err)
	assert.InDelta(t, float64(inputLatency+outputLatency), result.DelayFrames, 1)
}

func ExampleStretch() {
	ctx := context.Background()

	s, err := stretch.NewPresetDefault(ctx, 2, 44100, stretch.WithEngineFactory(passthrough.Factory{}))
	if err != nil {
		panic(err)
	}
	defer s.Close()

	input := make([]float32, 2*4410)
	output := make([]float32, 2*2205) // twice as fast
	if err := s.Process(ctx, input, output); err != nil {
		panic(err)
	}

	outputLatency, _ := s.OutputLatency()
	tail := make([]float32, 2*outputLatency)
	if err := s.Flush(ctx, tail); err != nil {
		panic(err)
	}
	fmt.Println(len(output)/2, len(tail)/2)
	// Output: 2205 1323
}
