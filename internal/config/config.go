package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/blochsim/internal/bloch"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10.0
	DefaultScene    = "precession"
	DefaultDataDir  = "data"
	DefaultLogLevel = "info"
)

var ErrInvalidConfig = errors.New("config: invalid value")

type Config struct {
	Scene    string  `yaml:"scene"`
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`
	// Jitter is the relative random spread of dt between frames.
	Jitter   float64 `yaml:"jitter"`
	Seed     int64   `yaml:"seed"`
	Protocol string  `yaml:"protocol"`
	Preset   string  `yaml:"preset"`
	DataDir  string  `yaml:"data_dir"`
	LogLevel string  `yaml:"log_level"`

	Field  FieldConfig  `yaml:"field"`
	Tuning bloch.Tuning `yaml:"tuning"`
}

// FieldConfig overrides the field settings of a scene. Zero values keep the
// scene's own settings.
type FieldConfig struct {
	B0    float64 `yaml:"b0"`
	Gamma float64 `yaml:"gamma"`
	T1    float64 `yaml:"t1"`
	T2    float64 `yaml:"t2"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:    DefaultScene,
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		Tuning:   bloch.DefaultTuning(),
	}
}

func isINI(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ini")
}

// Load reads a YAML config, or an INI config when path ends in .ini.
// Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if isINI(path) {
		f, err := ini.Load(path)
		if err != nil {
			return nil, err
		}
		f.NameMapper = ini.TitleUnderscore
		if err := f.MapTo(cfg); err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if isINI(path) {
		f := ini.Empty()
		if err := ini.ReflectFromWithMapper(f, cfg, ini.TitleUnderscore); err != nil {
			return err
		}
		return f.SaveTo(path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	positive := func(name string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := positive("dt", c.Dt); err != nil {
		return err
	}
	if err := positive("duration", c.Duration); err != nil {
		return err
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		return fmt.Errorf("%w: jitter must be in [0, 1), got %g", ErrInvalidConfig, c.Jitter)
	}
	if c.Field.T1 < 0 || c.Field.T2 < 0 {
		return fmt.Errorf("%w: relaxation times must be positive", ErrInvalidConfig)
	}
	if math.IsNaN(c.Field.B0) || math.IsInf(c.Field.B0, 0) || math.IsNaN(c.Field.Gamma) {
		return fmt.Errorf("%w: field values must be finite", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Apply writes the non-zero field overrides onto s.
func (f FieldConfig) Apply(s *bloch.Sim) {
	if f.B0 != 0 {
		s.B0 = f.B0
	}
	if f.Gamma != 0 {
		s.Gamma = f.Gamma
	}
	if f.T1 != 0 {
		s.T1 = f.T1
	}
	if f.T2 != 0 {
		s.T2 = f.T2
	}
}

// SimOptions builds core options from the config.
func (c *Config) SimOptions(log logrus.FieldLogger) bloch.Options {
	tuning := c.Tuning
	return bloch.Options{Tuning: &tuning, Seed: c.Seed, Logger: log}
}

// SweepParams lists the names accepted by Set.
var SweepParams = []string{"b0", "dt", "duration", "gamma", "jitter", "t1", "t2"}

// Set assigns one numeric setting by name and revalidates the config.
func (c *Config) Set(name string, v float64) error {
	switch strings.ToLower(name) {
	case "b0":
		c.Field.B0 = v
	case "gamma":
		c.Field.Gamma = v
	case "t1":
		c.Field.T1 = v
	case "t2":
		c.Field.T2 = v
	case "dt":
		c.Dt = v
	case "duration":
		c.Duration = v
	case "jitter":
		c.Jitter = v
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidConfig, name)
	}
	return c.Validate()
}
