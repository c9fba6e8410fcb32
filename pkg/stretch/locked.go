package stretch

import (
	"context"
	"sync"
)

// Locked serializes all calls to the wrapped Stretch, so it can be shared
// between goroutines.
type Locked struct {
	locker  sync.Mutex
	stretch *Stretch
}

func NewLocked(s *Stretch) *Locked {
	return &Locked{
		stretch: s,
	}
}

// Do runs fn while holding the lock, use it when several calls must not be
// interleaved with calls from other goroutines.
func (l *Locked) Do(fn func(*Stretch) error) error {
	l.locker.Lock()
	defer l.locker.Unlock()
	return fn(l.stretch)
}

func lockDo[T any](l *Locked, fn func(*Stretch) (T, error)) (T, error) {
	l.locker.Lock()
	defer l.locker.Unlock()
	return fn(l.stretch)
}

func (l *Locked) Clone(ctx context.Context) (*Locked, error) {
	clone, err := lockDo(l, func(s *Stretch) (*Stretch, error) {
		return s.Clone(ctx)
	})
	if err != nil {
		return nil, err
	}
	return NewLocked(clone), nil
}

func (l *Locked) Close() error {
	return l.Do(func(s *Stretch) error {
		return s.Close()
	})
}

func (l *Locked) Reset(ctx context.Context) error {
	return l.Do(func(s *Stretch) error {
		return s.Reset(ctx)
	})
}

func (l *Locked) InputLatency() (int, error) {
	return lockDo(l, func(s *Stretch) (int, error) {
		return s.InputLatency()
	})
}

func (l *Locked) OutputLatency() (int, error) {
	return lockDo(l, func(s *Stretch) (int, error) {
		return s.OutputLatency()
	})
}

func (l *Locked) SetTransposeFactor(ctx context.Context, multiplier float32, tonalityLimit TonalityLimit) error {
	return l.Do(func(s *Stretch) error {
		return s.SetTransposeFactor(ctx, multiplier, tonalityLimit)
	})
}

func (l *Locked) SetTransposeFactorSemitones(ctx context.Context, semitones float32, tonalityLimit TonalityLimit) error {
	return l.Do(func(s *Stretch) error {
		return s.SetTransposeFactorSemitones(ctx, semitones, tonalityLimit)
	})
}

func (l *Locked) Seek(ctx context.Context, input []float32, playbackRate float64) error {
	return l.Do(func(s *Stretch) error {
		return s.Seek(ctx, input, playbackRate)
	})
}

func (l *Locked) SeekRaw(ctx context.Context, input []float32, frames int, playbackRate float64) error {
	return l.Do(func(s *Stretch) error {
		return s.SeekRaw(ctx, input, frames, playbackRate)
	})
}

func (l *Locked) Process(ctx context.Context, input []float32, output []float32) error {
	return l.Do(func(s *Stretch) error {
		return s.Process(ctx, input, output)
	})
}

func (l *Locked) ProcessRaw(ctx context.Context, input []float32, inputFrames int, output []float32, outputFrames int) error {
	return l.Do(func(s *Stretch) error {
		return s.ProcessRaw(ctx, input, inputFrames, output, outputFrames)
	})
}

func (l *Locked) Flush(ctx context.Context, output []float32) error {
	return l.Do(func(s *Stretch) error {
		return s.Flush(ctx, output)
	})
}

func (l *Locked) FlushRaw(ctx context.Context, output []float32, frames int) error {
	return l.Do(func(s *Stretch) error {
		return s.FlushRaw(ctx, output, frames)
	})
}
