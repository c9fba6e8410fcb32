package stretch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/stretch/pkg/stretch/engine/implementations/passthrough"
)

func TestLocked(t *testing.T) {
	ctx := context.Background()
	const (
		channels   = 2
		goroutines = 8
		iterations = 50
		chunk      = 64
	)
	cfg := ConfigExplicit{Channels: channels, BlockLength: 32, Interval: 8}
	s, err := New(ctx, cfg, WithEngineFactory(passthrough.Factory{}))
	require.NoError(t, err)
	l := NewLocked(s)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			input := make([]float32, chunk*channels)
			output := make([]float32, chunk*channels)
			for i := 0; i < iterations; i++ {
				assert.NoError(t, l.Process(ctx, input, output))
				_, err := l.OutputLatency()
				assert.NoError(t, err)
				assert.NoError(t, l.SetTransposeFactorSemitones(ctx, 2, NoTonalityLimit()))
			}
		}()
	}
	wg.Wait()

	t.Run("do", func(t *testing.T) {
		var outputLatency int
		err := l.Do(func(s *Stretch) error {
			var err error
			outputLatency, err = s.OutputLatency()
			if err != nil {
				return err
			}
			return s.Flush(ctx, make([]float32, outputLatency*channels))
		})
		require.NoError(t, err)
		assert.Equal(t, 8, outputLatency)
	})

	t.Run("clone", func(t *testing.T) {
		clone, err := l.Clone(ctx)
		require.NoError(t, err)
		require.NoError(t, clone.Reset(ctx))
		inputLatency, err := clone.InputLatency()
		require.NoError(t, err)
		assert.Equal(t, 16, inputLatency)
		require.NoError(t, clone.Seek(ctx, make([]float32, 4), 1))
		require.NoError(t, clone.SeekRaw(ctx, make([]float32, 4), 2, 1))
		require.NoError(t, clone.ProcessRaw(ctx, make([]float32, 4), 2, make([]float32, 4), 2))
		require.NoError(t, clone.FlushRaw(ctx, make([]float32, 4), 2))
		require.NoError(t, clone.SetTransposeFactor(ctx, 1, WithTonalityLimit(0.2)))
		require.NoError(t, clone.Close())
	})

	require.NoError(t, l.Close())
	require.ErrorIs(t, l.Close(), ErrAlreadyClosed)
	require.ErrorIs(t, l.Flush(ctx, nil), ErrClosed)
}
