package stretch

import (
	"fmt"
)

// Config describes how an engine is constructed. It is one of
// ConfigExplicit, ConfigPresetDefault and ConfigPresetCheaper.
//
// A Config is the only thing needed to construct an equivalent engine again,
// which is how (*Stretch).Clone works.
type Config interface {
	fmt.Stringer
	ChannelCount() uint32
	Validate() error

	isConfig()
}

// ConfigExplicit sets the FFT window size (BlockLength) and the hop size
// (Interval) directly, both in frames.
type ConfigExplicit struct {
	Channels    uint32
	BlockLength int
	Interval    int
}

// ConfigPresetDefault derives the window and hop sizes from the sample rate,
// balanced for quality.
type ConfigPresetDefault struct {
	Channels   uint32
	SampleRate uint32
}

// ConfigPresetCheaper is like ConfigPresetDefault, but uses less CPU.
type ConfigPresetCheaper struct {
	Channels   uint32
	SampleRate uint32
}

var (
	_ Config = ConfigExplicit{}
	_ Config = ConfigPresetDefault{}
	_ Config = ConfigPresetCheaper{}
)

func (ConfigExplicit) isConfig()      {}
func (ConfigPresetDefault) isConfig() {}
func (ConfigPresetCheaper) isConfig() {}

func (cfg ConfigExplicit) ChannelCount() uint32      { return cfg.Channels }
func (cfg ConfigPresetDefault) ChannelCount() uint32 { return cfg.Channels }
func (cfg ConfigPresetCheaper) ChannelCount() uint32 { return cfg.Channels }

func (cfg ConfigExplicit) String() string {
	return fmt.Sprintf("explicit(channels:%d, block_length:%d, interval:%d)", cfg.Channels, cfg.BlockLength, cfg.Interval)
}

func (cfg ConfigPresetDefault) String() string {
	return fmt.Sprintf("preset_default(channels:%d, sample_rate:%d)", cfg.Channels, cfg.SampleRate)
}

func (cfg ConfigPresetCheaper) String() string {
	return fmt.Sprintf("preset_cheaper(channels:%d, sample_rate:%d)", cfg.Channels, cfg.SampleRate)
}

func (cfg ConfigExplicit) Validate() error {
	if cfg.Channels == 0 {
		return fmt.Errorf("%w: the amount of channels must be at least 1", ErrInvalidConfig)
	}
	if cfg.BlockLength <= 0 {
		return fmt.Errorf("%w: block length must be positive: got %d", ErrInvalidConfig, cfg.BlockLength)
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive: got %d", ErrInvalidConfig, cfg.Interval)
	}
	return nil
}

func (cfg ConfigPresetDefault) Validate() error {
	return validatePreset(cfg.Channels, cfg.SampleRate)
}

func (cfg ConfigPresetCheaper) Validate() error {
	return validatePreset(cfg.Channels, cfg.SampleRate)
}

func validatePreset(channels uint32, sampleRate uint32) error {
	if channels == 0 {
		return fmt.Errorf("%w: the amount of channels must be at least 1", ErrInvalidConfig)
	}
	if sampleRate == 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfig)
	}
	return nil
}
