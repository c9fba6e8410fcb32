package planar

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func TestPlanarize(t *testing.T) {
	in := []float32{1, 11, 2, 12, 3, 13, 4, 14}
	out := make([]float32, len(in))
	err := Planarize(2, out, in)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4, 11, 12, 13, 14}, out, spew.Sdump(in))
}

func TestUnplanarize(t *testing.T) {
	in := []float32{1, 2, 3, 11, 12, 13, 21, 22, 23}
	out := make([]float32, len(in))
	err := Unplanarize(3, out, in)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 11, 21, 2, 12, 22, 3, 13, 23}, out, spew.Sdump(in))
}

func TestPlanarizeRoundTrip(t *testing.T) {
	in := make([]int, 6*4)
	for i := range in {
		in[i] = i
	}
	planar := make([]int, len(in))
	require.NoError(t, Planarize(6, planar, in))
	back := make([]int, len(in))
	require.NoError(t, Unplanarize(6, back, planar))
	require.Equal(t, in, back)
}

func TestPlanarizeErrors(t *testing.T) {
	require.Error(t, Planarize(0, make([]float32, 2), make([]float32, 2)))
	require.Error(t, Planarize(2, make([]float32, 3), make([]float32, 3)))
	require.Error(t, Unplanarize(2, make([]float32, 2), make([]float32, 4)))
}
