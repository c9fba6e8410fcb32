//go:build !signalsmith
// +build !signalsmith

package signalsmith

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotCompiled(t *testing.T) {
	_, err := Factory{}.Create(2, 1024, 256)
	require.ErrorIs(t, err, ErrNotCompiled)
	_, err = Factory{}.CreatePresetDefault(2, 44100)
	require.ErrorIs(t, err, ErrNotCompiled)
	_, err = Factory{}.CreatePresetCheaper(2, 44100)
	require.ErrorIs(t, err, ErrNotCompiled)
}
