package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/audio/resampler"
	"github.com/xaionaro-go/stretch/pkg/stretch"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/implementations/passthrough"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/implementations/signalsmith"
	"github.com/xaionaro-go/stretch/pkg/stretchstream"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML engine config; overrides --preset, --block-length and --interval")
	preset := pflag.String("preset", "default", "engine configuration: default, cheaper or explicit")
	blockLength := pflag.Int("block-length", 4096, "FFT window size in frames, for --preset=explicit")
	interval := pflag.Int("interval", 1024, "hop size in frames, for --preset=explicit")
	timeFactor := pflag.Float64("time-factor", 1, "output duration divided by input duration")
	semitones := pflag.Float32("semitones", 0, "pitch shift in semitones; overrides --transpose")
	transpose := pflag.Float32("transpose", 1, "pitch shift as a frequency multiplier")
	tonalityLimitHz := pflag.Float32("tonality-limit-hz", 0, "upper frequency bound of the tonal correction, 0 means no limit")
	compensateLatency := pflag.Bool("compensate-latency", true, "align the output with the input and trim the engine delay")
	engineName := pflag.String("engine", "auto", "engine backend: auto, signalsmith or passthrough")
	verifyLatency := pflag.Bool("verify-latency", false, "measure the delay of the engine and compare it with the reported latency")
	chunkFrames := pflag.Uint("chunk-frames", stretchstream.DefaultChunkFrames, "amount of frames per processing call")
	inputFormat := audio.PCMFormatFloat32LE
	pflag.Var(&inputFormat, "input-format", "PCM format of a raw input")
	inputChannels := pflag.Uint32("channels", 2, "amount of channels of a raw input")
	inputSampleRate := pflag.Uint32("sample-rate", 48000, "sample rate of a raw input")
	outputFormat := audio.PCMFormatUndefined
	pflag.Var(&outputFormat, "output-format", "PCM format of the output, defaults to the input format (f32le for WAV and Ogg inputs)")
	outputChannels := pflag.Uint32("output-channels", 0, "amount of channels of the output (1 or the input amount), 0 means the same as the input")
	outputSampleRate := pflag.Uint32("output-sample-rate", 0, "resample the output, 0 means the same sample rate as the input")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input.wav|input.ogg|input.raw|-> <output.wav|output.raw|->"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	in, err := openInput(ctx, pflag.Arg(0), rawInputParams{
		Format:     inputFormat,
		Channels:   audio.Channel(*inputChannels),
		SampleRate: audio.SampleRate(*inputSampleRate),
	})
	assertNoError(err)
	defer in.Close()
	logger.Infof(ctx, "input: %d channels, %d Hz, %v", in.Channels, in.SampleRate, in.Format)

	var cfg stretch.Config
	if *configPath != "" {
		cfg, err = stretch.LoadConfigFile(*configPath)
		assertNoError(err)
		if cfg.ChannelCount() != uint32(in.Channels) {
			panic(fmt.Errorf("the config is for %d channels, but the input has %d", cfg.ChannelCount(), in.Channels))
		}
	} else {
		cfg, err = configFromFlags(*preset, in, *blockLength, *interval)
		assertNoError(err)
	}

	var opts []stretch.Option
	if factory := engineFactory(*engineName); factory != nil {
		opts = append(opts, stretch.WithEngineFactory(factory))
	}
	s, err := stretch.New(ctx, cfg, opts...)
	assertNoError(err)
	logger.Infof(ctx, "engine: %s, config: %v", s.EngineName(), cfg)

	tonalityLimit := stretch.NoTonalityLimit()
	if *tonalityLimitHz > 0 {
		tonalityLimit = stretch.TonalityLimitHz(*tonalityLimitHz, uint32(in.SampleRate))
	}
	if *semitones != 0 {
		assertNoError(s.SetTransposeFactorSemitones(ctx, *semitones, tonalityLimit))
	} else {
		assertNoError(s.SetTransposeFactor(ctx, *transpose, tonalityLimit))
	}

	if *verifyLatency {
		assertNoError(verifyEngineLatency(ctx, s, in.SampleRate))
	}

	stream, err := stretchstream.New(ctx, in, s, in.Format, stretchstream.Options{
		TimeFactor:        *timeFactor,
		ChunkFrames:       *chunkFrames,
		CompensateLatency: *compensateLatency,
	})
	assertNoError(err)
	defer func() {
		assertNoError(stream.Close())
	}()

	counted := datacounter.NewReaderCounter(stream)
	streamFormat := resampler.Format{
		Channels:   in.Channels,
		SampleRate: in.SampleRate,
		PCMFormat:  in.Format,
	}
	outFormat := streamFormat
	if outputFormat != audio.PCMFormatUndefined {
		outFormat.PCMFormat = outputFormat
	}
	if *outputChannels != 0 {
		outFormat.Channels = audio.Channel(*outputChannels)
	}
	if *outputSampleRate != 0 {
		outFormat.SampleRate = audio.SampleRate(*outputSampleRate)
	}
	var result io.Reader = counted
	if outFormat != streamFormat {
		logger.Infof(ctx, "converting the output to %d channels, %d Hz, %v", outFormat.Channels, outFormat.SampleRate, outFormat.PCMFormat)
		result, err = resampler.NewResampler(streamFormat, counted, outFormat)
		assertNoError(err)
	}

	out, err := createOutput(ctx, pflag.Arg(1), outFormat.PCMFormat, outFormat.Channels, outFormat.SampleRate)
	assertNoError(err)

	progressCtx, cancelProgress := context.WithCancel(ctx)
	observability.Go(progressCtx, func(ctx context.Context) {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "written: %d bytes", counted.Count())
			}
		}
	})

	err = out.WriteFrom(result)
	cancelProgress()
	assertNoError(err)
	assertNoError(out.Close())

	inputFrames, outputFrames := stream.Frames()
	logger.Infof(ctx, "done: %d frames -> %d frames, %d bytes written", inputFrames, outputFrames, counted.Count())
}

func configFromFlags(
	preset string,
	in *input,
	blockLength int,
	interval int,
) (stretch.Config, error) {
	switch preset {
	case "default":
		return stretch.ConfigPresetDefault{Channels: uint32(in.Channels), SampleRate: uint32(in.SampleRate)}, nil
	case "cheaper":
		return stretch.ConfigPresetCheaper{Channels: uint32(in.Channels), SampleRate: uint32(in.SampleRate)}, nil
	case "explicit":
		return stretch.ConfigExplicit{Channels: uint32(in.Channels), BlockLength: blockLength, Interval: interval}, nil
	default:
		return nil, fmt.Errorf("unknown preset '%s'", preset)
	}
}

func engineFactory(name string) engine.Factory {
	switch name {
	case "auto":
		return nil
	case signalsmith.Name:
		return signalsmith.Factory{}
	case passthrough.Name:
		return passthrough.Factory{}
	default:
		panic(fmt.Errorf("unknown engine '%s'", name))
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
