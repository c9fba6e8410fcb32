// Package stretch provides a streaming time-stretcher and pitch-shifter.
//
// A Stretch owns exactly one engine instance. It accepts interleaved
// buffers (all channels of frame i precede all channels of frame i+1) and
// derives frame counts as len(buffer)/channels; a trailing partial frame is
// ignored.
//
// A Stretch may be passed between goroutines, but it is not safe for
// concurrent use: calls on the same Stretch must be serialized by the caller
// (see Locked). Different Stretch values are fully independent.
package stretch

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/registry"
)

// noCopy makes "go vet" report copies of a Stretch: two copies would
// destroy the same engine twice.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Stretch is a handle owning one engine instance. The engine is released
// by Close only: a Stretch dropped without Close leaks it.
type Stretch struct {
	noCopy noCopy

	engine   engine.Engine
	factory  engine.Factory
	config   Config
	channels int
}

type options struct {
	factory engine.Factory
}

// Option customizes the construction of a Stretch.
type Option func(*options)

// WithEngineFactory forces the engine backend instead of picking the most
// preferred registered one.
func WithEngineFactory(factory engine.Factory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

var (
	lastSuccessfulFactory       engine.Factory
	lastSuccessfulFactoryLocker sync.Mutex
)

func getLastSuccessfulFactory() engine.Factory {
	lastSuccessfulFactoryLocker.Lock()
	defer lastSuccessfulFactoryLocker.Unlock()
	return lastSuccessfulFactory
}

func setLastSuccessfulFactory(factory engine.Factory) {
	lastSuccessfulFactoryLocker.Lock()
	defer lastSuccessfulFactoryLocker.Unlock()
	lastSuccessfulFactory = factory
}

// New constructs a Stretch for the given Config variant.
//
// Without WithEngineFactory the registered engine factories are tried in
// the order of their priority (the one that succeeded last time goes
// first), and ErrNoEngine is returned if none of them succeeds.
func New(
	ctx context.Context,
	cfg Config,
	opts ...Option,
) (_ret *Stretch, _err error) {
	logger.Debugf(ctx, "New(%v)", cfg)
	defer func() { logger.Debugf(ctx, "/New(%v): %v", cfg, _err) }()

	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory != nil {
		return newWithFactory(o.factory, cfg)
	}

	if factory := getLastSuccessfulFactory(); factory != nil {
		s, err := newWithFactory(factory, cfg)
		if err == nil {
			return s, nil
		}
		logger.Debugf(ctx, "the previously used engine '%s' failed: %v", factory.Name(), err)
	}

	var mErr *multierror.Error
	for _, factory := range registry.Factories() {
		s, err := newWithFactory(factory, cfg)
		logger.Debugf(ctx, "initializing engine '%s' result is %v", factory.Name(), err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize engine '%s': %w", factory.Name(), err))
			continue
		}
		setLastSuccessfulFactory(factory)
		return s, nil
	}
	if mErr == nil {
		return nil, ErrNoEngine
	}
	return nil, fmt.Errorf("%w: %w", ErrNoEngine, mErr.ErrorOrNil())
}

// NewExplicit is New with a ConfigExplicit.
func NewExplicit(
	ctx context.Context,
	channels uint32,
	blockLength int,
	interval int,
	opts ...Option,
) (*Stretch, error) {
	return New(ctx, ConfigExplicit{
		Channels:    channels,
		BlockLength: blockLength,
		Interval:    interval,
	}, opts...)
}

// NewPresetDefault is New with a ConfigPresetDefault.
func NewPresetDefault(
	ctx context.Context,
	channels uint32,
	sampleRate uint32,
	opts ...Option,
) (*Stretch, error) {
	return New(ctx, ConfigPresetDefault{
		Channels:   channels,
		SampleRate: sampleRate,
	}, opts...)
}

// NewPresetCheaper is New with a ConfigPresetCheaper.
func NewPresetCheaper(
	ctx context.Context,
	channels uint32,
	sampleRate uint32,
	opts ...Option,
) (*Stretch, error) {
	return New(ctx, ConfigPresetCheaper{
		Channels:   channels,
		SampleRate: sampleRate,
	}, opts...)
}

func normalizeConfig(cfg Config) (Config, error) {
	switch c := cfg.(type) {
	case ConfigExplicit, ConfigPresetDefault, ConfigPresetCheaper:
		return c, nil
	case *ConfigExplicit:
		if c != nil {
			return *c, nil
		}
	case *ConfigPresetDefault:
		if c != nil {
			return *c, nil
		}
	case *ConfigPresetCheaper:
		if c != nil {
			return *c, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown config type %T", ErrInvalidConfig, cfg)
	}
	return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
}

func newWithFactory(factory engine.Factory, cfg Config) (*Stretch, error) {
	e, err := createEngine(factory, cfg)
	if err != nil {
		return nil, err
	}
	s := &Stretch{
		engine:   e,
		factory:  factory,
		config:   cfg,
		channels: int(cfg.ChannelCount()),
	}
	return s, nil
}

func createEngine(factory engine.Factory, cfg Config) (engine.Engine, error) {
	var (
		e   engine.Engine
		err error
	)
	switch cfg := cfg.(type) {
	case ConfigExplicit:
		e, err = factory.Create(int(cfg.Channels), cfg.BlockLength, cfg.Interval)
	case ConfigPresetDefault:
		e, err = factory.CreatePresetDefault(int(cfg.Channels), float32(cfg.SampleRate))
	case ConfigPresetCheaper:
		e, err = factory.CreatePresetCheaper(int(cfg.Channels), float32(cfg.SampleRate))
	default:
		return nil, fmt.Errorf("%w: unknown config type %T", ErrInvalidConfig, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to create an engine for %v: %w", cfg, err)
	}
	if e == nil {
		return nil, fmt.Errorf("engine '%s' returned no instance for %v", factory.Name(), cfg)
	}
	return e, nil
}

// Clone constructs an independent Stretch with the same Config and engine
// backend. The clone starts from the fresh state: it does not continue the
// stream of the original.
func (s *Stretch) Clone(ctx context.Context) (_ret *Stretch, _err error) {
	logger.Tracef(ctx, "Clone")
	defer func() { logger.Tracef(ctx, "/Clone: %v", _err) }()
	if s.engine == nil {
		return nil, ErrClosed
	}
	return newWithFactory(s.factory, s.config)
}

// Close releases the engine. Any further call returns ErrClosed.
func (s *Stretch) Close() error {
	if s.engine == nil {
		return ErrAlreadyClosed
	}
	e := s.engine
	s.engine = nil
	e.Destroy()
	return nil
}

func (s *Stretch) Config() Config {
	return s.config
}

func (s *Stretch) Channels() audio.Channel {
	return audio.Channel(s.channels)
}

// EngineName returns the name of the backend in use.
func (s *Stretch) EngineName() string {
	return s.factory.Name()
}

// Reset discards the accumulated signal history, the config is kept.
func (s *Stretch) Reset(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Reset")
	defer func() { logger.Tracef(ctx, "/Reset: %v", _err) }()
	if s.engine == nil {
		return ErrClosed
	}
	s.engine.Reset()
	return nil
}

// InputLatency returns the amount of frames between a frame submitted to
// Process and the center of its effect.
func (s *Stretch) InputLatency() (int, error) {
	if s.engine == nil {
		return 0, ErrClosed
	}
	return s.engine.InputLatency(), nil
}

// OutputLatency returns the amount of frames that are still held inside
// the engine after a Process call. A Flush of this size drains it completely.
func (s *Stretch) OutputLatency() (int, error) {
	if s.engine == nil {
		return 0, ErrClosed
	}
	return s.engine.OutputLatency(), nil
}

// SetTransposeFactor sets the frequency multiplier, 1 means no pitch shift.
func (s *Stretch) SetTransposeFactor(
	ctx context.Context,
	multiplier float32,
	tonalityLimit TonalityLimit,
) (_err error) {
	logger.Tracef(ctx, "SetTransposeFactor(%v, %v)", multiplier, tonalityLimit)
	defer func() { logger.Tracef(ctx, "/SetTransposeFactor(%v, %v): %v", multiplier, tonalityLimit, _err) }()
	if s.engine == nil {
		return ErrClosed
	}
	s.engine.SetTransposeFactor(multiplier, tonalityLimit.sentinel())
	return nil
}

// SetTransposeFactorSemitones is SetTransposeFactor expressed in semitones.
func (s *Stretch) SetTransposeFactorSemitones(
	ctx context.Context,
	semitones float32,
	tonalityLimit TonalityLimit,
) (_err error) {
	logger.Tracef(ctx, "SetTransposeFactorSemitones(%v, %v)", semitones, tonalityLimit)
	defer func() { logger.Tracef(ctx, "/SetTransposeFactorSemitones(%v, %v): %v", semitones, tonalityLimit, _err) }()
	if s.engine == nil {
		return ErrClosed
	}
	s.engine.SetTransposeSemitones(semitones, tonalityLimit.sentinel())
	return nil
}

// Seek feeds the input to the engine without producing output, to prime
// it before the first Process call. The playback rate applies to this call only.
func (s *Stretch) Seek(
	ctx context.Context,
	input []float32,
	playbackRate float64,
) error {
	return s.SeekRaw(ctx, input, s.frames(ctx, len(input)), playbackRate)
}

// SeekRaw is Seek with an explicit amount of frames.
func (s *Stretch) SeekRaw(
	ctx context.Context,
	input []float32,
	frames int,
	playbackRate float64,
) (_err error) {
	logger.Tracef(ctx, "Seek, frames:%d, rate:%v", frames, playbackRate)
	defer func() { logger.Tracef(ctx, "/Seek, frames:%d, rate:%v: %v", frames, playbackRate, _err) }()
	if s.engine == nil {
		return ErrClosed
	}
	if err := s.checkFrames("input", len(input), frames); err != nil {
		return err
	}
	s.engine.Seek(input, frames, playbackRate)
	return nil
}

// Process consumes len(input)/channels frames and produces
// len(output)/channels frames. The ratio between the two is the time-stretch.
func (s *Stretch) Process(
	ctx context.Context,
	input []float32,
	output []float32,
) error {
	return s.ProcessRaw(ctx, input, s.frames(ctx, len(input)), output, s.frames(ctx, len(output)))
}

// ProcessRaw is Process with explicit amounts of frames.
func (s *Stretch) ProcessRaw(
	ctx context.Context,
	input []float32,
	inputFrames int,
	output []float32,
	outputFrames int,
) (_err error) {
	logger.Tracef(ctx, "Process, frames:%d->%d", inputFrames, outputFrames)
	defer func() { logger.Tracef(ctx, "/Process, frames:%d->%d: %v", inputFrames, outputFrames, _err) }()
	if s.engine == nil {
		return ErrClosed
	}
	if err := s.checkFrames("input", len(input), inputFrames); err != nil {
		return err
	}
	if err := s.checkFrames("output", len(output), outputFrames); err != nil {
		return err
	}
	s.engine.Process(input, inputFrames, output, outputFrames)
	return nil
}

// Flush writes the remaining buffered output at the end of the stream.
// To get everything the output should be at least OutputLatency frames long.
// The Stretch stays usable afterwards.
func (s *Stretch) Flush(
	ctx context.Context,
	output []float32,
) error {
	return s.FlushRaw(ctx, output, s.frames(ctx, len(output)))
}

// FlushRaw is Flush with an explicit amount of frames.
func (s *Stretch) FlushRaw(
	ctx context.Context,
	output []float32,
	frames int,
) (_err error) {
	logger.Tracef(ctx, "Flush, frames:%d", frames)
	defer func() { logger.Tracef(ctx, "/Flush, frames:%d: %v", frames, _err) }()
	if s.engine == nil {
		return ErrClosed
	}
	if err := s.checkFrames("output", len(output), frames); err != nil {
		return err
	}
	s.engine.Flush(output, frames)
	return nil
}

func (s *Stretch) frames(ctx context.Context, samples int) int {
	if s.channels == 0 {
		return 0
	}
	if remainder := samples % s.channels; remainder != 0 {
		logger.Tracef(ctx, "ignoring %d trailing samples of a partial frame (%d samples, %d channels)", remainder, samples, s.channels)
	}
	return samples / s.channels
}

func (s *Stretch) checkFrames(name string, samples int, frames int) error {
	if frames < 0 {
		return fmt.Errorf("the amount of %s frames is negative: %d", name, frames)
	}
	if frames > samples/s.channels {
		return fmt.Errorf("%w: %s: %d frames of %d channels do not fit into %d samples", ErrBufferTooShort, name, frames, s.channels, samples)
	}
	return nil
}
