package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/stretch/pkg/alignment"
	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/audio/level"
	"github.com/xaionaro-go/stretch/pkg/stretch"
)

// verifyEngineLatency feeds one second of noise to a clone of the stretcher
// and compares the measured delay with the latency reported by the engine.
func verifyEngineLatency(
	ctx context.Context,
	s *stretch.Stretch,
	sampleRate audio.SampleRate,
) (_err error) {
	logger.Debugf(ctx, "verifyEngineLatency")
	defer func() { logger.Debugf(ctx, "/verifyEngineLatency: %v", _err) }()

	probe, err := s.Clone(ctx)
	if err != nil {
		return fmt.Errorf("unable to clone the stretcher: %w", err)
	}
	defer probe.Close()

	channels := int(probe.Channels())
	frames := int(sampleRate)
	rng := rand.New(rand.NewSource(0))
	input := make([]float32, frames*channels)
	for i := range input {
		input[i] = float32(rng.Float64()-0.5) * 0.5
	}
	output := make([]float32, len(input))
	if err := probe.Process(ctx, input, output); err != nil {
		return fmt.Errorf("unable to process the probe: %w", err)
	}

	inputLatency, err := probe.InputLatency()
	if err != nil {
		return err
	}
	outputLatency, err := probe.OutputLatency()
	if err != nil {
		return err
	}

	result, err := alignment.EstimateDelay(ctx, input, output, probe.Channels(), sampleRate, alignment.Options{})
	if err != nil {
		return fmt.Errorf("unable to estimate the delay: %w", err)
	}
	reported := inputLatency + outputLatency
	logger.Infof(ctx,
		"latency: reported %d+%d=%d frames, measured %.1f frames (confidence %.2f); probe level: %.1f dBFS -> %.1f dBFS",
		inputLatency, outputLatency, reported, result.DelayFrames, result.Confidence,
		level.DBFS(level.RMS(input)), level.DBFS(level.RMS(output)),
	)
	if math.Abs(result.DelayFrames-float64(reported)) > float64(reported)/10+1 {
		logger.Warnf(ctx, "the measured delay differs from the reported latency")
	}
	return nil
}
