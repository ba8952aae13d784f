// Package config loads the renderer and profiler settings from YAML.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Video struct {
	// Preprocessing kernel: "auto", "scalar" or an accelerated kernel name.
	Kernel string `yaml:"kernel"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// Exponent of the post-processing pass; 1 leaves colors unchanged.
	Gamma float32 `yaml:"gamma"`
}

type Profiler struct {
	Enabled  bool   `yaml:"enabled"`
	Capacity int    `yaml:"capacity"`
	LogPath  string `yaml:"log"`
	CSVPath  string `yaml:"csv"`
}

type Config struct {
	Video    Video    `yaml:"video"`
	Profiler Profiler `yaml:"profiler"`
	LogLevel string   `yaml:"logLevel"`
}

func Default() Config {
	return Config{
		Video: Video{
			Kernel: "auto",
			Width:  640,
			Height: 480,
			Gamma:  1,
		},
		Profiler: Profiler{
			Enabled:  true,
			Capacity: 4 * 1024,
			LogPath:  "profile.perf",
			CSVPath:  "profile.csv",
		},
		LogLevel: "info",
	}
}

// Parse overlays data on the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Load(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w (%s)", err, filename)
	}
	slog.Debug("loaded config", "path", filename)
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("config: invalid video size %dx%d", c.Video.Width, c.Video.Height)
	}
	if !(c.Video.Gamma > 0) || math.IsInf(float64(c.Video.Gamma), 1) {
		return fmt.Errorf("config: invalid gamma %v", c.Video.Gamma)
	}
	if c.Profiler.Capacity <= 0 {
		return fmt.Errorf("config: profiler capacity must be positive, got %d", c.Profiler.Capacity)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
