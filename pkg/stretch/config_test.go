package stretch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		cfg   Config
		valid bool
	}{
		{ConfigExplicit{Channels: 1, BlockLength: 1, Interval: 1}, true},
		{ConfigExplicit{Channels: 0, BlockLength: 1024, Interval: 256}, false},
		{ConfigExplicit{Channels: 2, BlockLength: 0, Interval: 256}, false},
		{ConfigExplicit{Channels: 2, BlockLength: 1024, Interval: -1}, false},
		{ConfigPresetDefault{Channels: 2, SampleRate: 44100}, true},
		{ConfigPresetDefault{Channels: 0, SampleRate: 44100}, false},
		{ConfigPresetDefault{Channels: 2}, false},
		{ConfigPresetCheaper{Channels: 8, SampleRate: 96000}, true},
		{ConfigPresetCheaper{Channels: 0, SampleRate: 96000}, false},
	} {
		t.Run(tc.cfg.String(), func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("kind: explicit\nchannels: 2\nblock_length: 2048\ninterval: 512\n"))
		require.NoError(t, err)
		assert.Equal(t, ConfigExplicit{Channels: 2, BlockLength: 2048, Interval: 512}, cfg)

		cfg, err = ParseConfig([]byte("kind: preset_cheaper\nchannels: 1\nsample_rate: 48000\n"))
		require.NoError(t, err)
		assert.Equal(t, ConfigPresetCheaper{Channels: 1, SampleRate: 48000}, cfg)

		cfg, err = ParseConfig([]byte("channels: 2\nsample_rate: 44100\n"))
		require.NoError(t, err)
		assert.Equal(t, ConfigPresetDefault{Channels: 2, SampleRate: 44100}, cfg)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseConfig([]byte("kind: fastest\nchannels: 2\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)
		_, err = ParseConfig([]byte("kind: explicit\nchannels: 0\nblock_length: 2048\ninterval: 512\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)
		_, err = ParseConfig([]byte("kind: [\n"))
		require.Error(t, err)
	})

	t.Run("marshal", func(t *testing.T) {
		b, err := MarshalConfig(&ConfigPresetDefault{Channels: 2, SampleRate: 44100})
		require.NoError(t, err)
		assert.Equal(t, "kind: preset_default\nchannels: 2\nsample_rate: 44100\n", string(b))

		cfg, err := ParseConfig(b)
		require.NoError(t, err)
		assert.Equal(t, ConfigPresetDefault{Channels: 2, SampleRate: 44100}, cfg)
	})

	t.Run("load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stretch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("kind: explicit\nchannels: 1\nblock_length: 512\ninterval: 128\n"), 0o644))
		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, ConfigKindExplicit, KindOf(cfg))

		_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}
