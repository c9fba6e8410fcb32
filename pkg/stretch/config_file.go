package stretch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ConfigKind string

const (
	ConfigKindExplicit      = ConfigKind("explicit")
	ConfigKindPresetDefault = ConfigKind("preset_default")
	ConfigKindPresetCheaper = ConfigKind("preset_cheaper")
)

func KindOf(cfg Config) ConfigKind {
	switch cfg.(type) {
	case ConfigExplicit, *ConfigExplicit:
		return ConfigKindExplicit
	case ConfigPresetDefault, *ConfigPresetDefault:
		return ConfigKindPresetDefault
	case ConfigPresetCheaper, *ConfigPresetCheaper:
		return ConfigKindPresetCheaper
	}
	return ""
}

// ConfigFile is the serialized form of a Config.
type ConfigFile struct {
	Kind        ConfigKind `yaml:"kind"`
	Channels    uint32     `yaml:"channels"`
	BlockLength int        `yaml:"block_length,omitempty"`
	Interval    int        `yaml:"interval,omitempty"`
	SampleRate  uint32     `yaml:"sample_rate,omitempty"`
}

// Config converts the file into a validated Config. An empty kind means
// preset_default.
func (f ConfigFile) Config() (Config, error) {
	var cfg Config
	switch f.Kind {
	case ConfigKindExplicit:
		cfg = ConfigExplicit{
			Channels:    f.Channels,
			BlockLength: f.BlockLength,
			Interval:    f.Interval,
		}
	case "", ConfigKindPresetDefault:
		cfg = ConfigPresetDefault{
			Channels:   f.Channels,
			SampleRate: f.SampleRate,
		}
	case ConfigKindPresetCheaper:
		cfg = ConfigPresetCheaper{
			Channels:   f.Channels,
			SampleRate: f.SampleRate,
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind '%s'", ErrInvalidConfig, f.Kind)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ConfigFileFrom(cfg Config) (ConfigFile, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return ConfigFile{}, err
	}
	switch cfg := cfg.(type) {
	case ConfigExplicit:
		return ConfigFile{
			Kind:        ConfigKindExplicit,
			Channels:    cfg.Channels,
			BlockLength: cfg.BlockLength,
			Interval:    cfg.Interval,
		}, nil
	case ConfigPresetDefault:
		return ConfigFile{
			Kind:       ConfigKindPresetDefault,
			Channels:   cfg.Channels,
			SampleRate: cfg.SampleRate,
		}, nil
	case ConfigPresetCheaper:
		return ConfigFile{
			Kind:       ConfigKindPresetCheaper,
			Channels:   cfg.Channels,
			SampleRate: cfg.SampleRate,
		}, nil
	}
	return ConfigFile{}, fmt.Errorf("%w: unknown config type %T", ErrInvalidConfig, cfg)
}

func ParseConfig(b []byte) (Config, error) {
	var f ConfigFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unable to unmarshal the config: %w", err)
	}
	return f.Config()
}

func MarshalConfig(cfg Config) ([]byte, error) {
	f, err := ConfigFileFrom(cfg)
	if err != nil {
		return nil, err
	}
	b, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal the config: %w", err)
	}
	return b, nil
}

func LoadConfigFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	cfg, err := ParseConfig(b)
	if err != nil {
		return nil, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	return cfg, nil
}
