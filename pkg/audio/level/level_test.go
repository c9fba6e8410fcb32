package level

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Zero(t, Energy(nil))
		assert.Zero(t, RMS(nil))
		assert.Zero(t, Peak(nil))
	})

	t.Run("square", func(t *testing.T) {
		s := []float32{0.5, -0.5, 0.5, -0.5}
		assert.InDelta(t, 1.0, Energy(s), 1e-9)
		assert.InDelta(t, 0.5, RMS(s), 1e-9)
		assert.InDelta(t, 0.5, Peak(s), 1e-9)
	})

	t.Run("sine", func(t *testing.T) {
		s := make([]float32, 44100)
		for i := range s {
			s[i] = float32(math.Sin(2 * math.Pi * 441 * float64(i) / 44100))
		}
		assert.InDelta(t, 1/math.Sqrt2, RMS(s), 1e-4)
		assert.InDelta(t, 1.0, Peak(s), 1e-4)
	})

	t.Run("dBFS", func(t *testing.T) {
		assert.InDelta(t, 0.0, DBFS(1), 1e-9)
		assert.InDelta(t, -6.0206, DBFS(0.5), 1e-3)
		assert.True(t, math.IsInf(DBFS(0), -1))
	})
}
