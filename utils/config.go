package utils

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config holds the configuration for the game
type Config struct {
	Width               int           `json:"width" jsonschema:"minimum=1,description=Viewport width in cells"`
	Height              int           `json:"height" jsonschema:"minimum=1,description=Viewport height in cells"`
	OriginX             int32         `json:"origin_x" jsonschema:"description=Lattice x of the viewport's top left corner"`
	OriginY             int32         `json:"origin_y" jsonschema:"description=Lattice y of the viewport's top left corner"`
	FrameRate           time.Duration `json:"frame_rate" jsonschema:"description=Delay between frames in nanoseconds"`
	AutoRestart         bool          `json:"auto_restart"`
	StagnationThreshold int           `json:"stagnation_threshold" jsonschema:"minimum=1"`
	MaxGenerations      int           `json:"max_generations" jsonschema:"minimum=0,description=Stop after this many generations; 0 runs forever"`
	Pattern             string        `json:"pattern" jsonschema:"enum=random,enum=glider,enum=blinker,enum=block,enum=rpentomino"`
	RandomDensity       float64       `json:"random_density" jsonschema:"minimum=0,maximum=1"`
	InjectionCount      int           `json:"injection_count" jsonschema:"minimum=0"`
	Seed                int64         `json:"seed" jsonschema:"description=Random seed; 0 picks one from the clock"`
	RetentionThreshold  int           `json:"retention_threshold" jsonschema:"minimum=0,description=Ticks a void cell is kept before collection"`
	Workers             int           `json:"workers" jsonschema:"description=Goroutines for rule evaluation; -1 uses every CPU"`
	MaxCells            int           `json:"max_cells" jsonschema:"minimum=0,description=Cap on materialized cells; 0 is unbounded"`
	Verify              bool          `json:"verify" jsonschema:"description=Check engine invariants after every tick"`
	LogLevel            string        `json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Render              bool          `json:"render" jsonschema:"description=Draw the viewport to the terminal"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Width:               60,
		Height:              30,
		FrameRate:           150 * time.Millisecond,
		AutoRestart:         true,
		StagnationThreshold: 5,
		MaxGenerations:      1000,
		Pattern:             "random",
		RandomDensity:       0.15,
		InjectionCount:      3,
		RetentionThreshold:  2,
		Workers:             -1,
		LogLevel:            "info",
		Render:              true,
	}
}

// LoadConfig loads configuration from JSON file
func LoadConfig(filename string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, errors.Wrapf(err, "[LoadConfig] failed to read file: %+v", filename)
	}

	if err = json.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "[LoadConfig] failed to unmarshal data from file: %+v", filename)
	}

	if err = config.Validate(); err != nil {
		return config, errors.Wrapf(err, "[LoadConfig] invalid config in file: %+v", filename)
	}

	return config, nil
}

// Validate rejects values the simulation cannot run with
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.Errorf("viewport must be positive, got %dx%d", c.Width, c.Height)
	case c.RetentionThreshold < 0:
		return errors.Errorf("retention_threshold must not be negative, got %d", c.RetentionThreshold)
	case c.RandomDensity < 0 || c.RandomDensity > 1:
		return errors.Errorf("random_density must be within [0,1], got %v", c.RandomDensity)
	case c.MaxCells < 0:
		return errors.Errorf("max_cells must not be negative, got %d", c.MaxCells)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a config log level onto slog
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("unknown log_level %q", level)
}
