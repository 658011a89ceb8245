package pps

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the host configuration read from a TOML file.
type Config struct {
	Driver  DriverConfig  `toml:"driver"`
	Logging LoggingConfig `toml:"logging"`
	State   StateConfig   `toml:"state"`
}

// DriverConfig controls the Driver cadence.
type DriverConfig struct {
	FrameRate     int           `toml:"frame_rate"`      // frames per second for Run
	FixedStep     time.Duration `toml:"fixed_step"`      // length of one Fixed phase
	MaxFixedSteps int           `toml:"max_fixed_steps"` // catch-up cap per frame
}

// LoggingConfig selects the logger built by NewLogger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// StateConfig locates persisted state.
type StateConfig struct {
	Path         string `toml:"path"`
	SaveOnExit   bool   `toml:"save_on_exit"`
	RestoreOnRun bool   `toml:"restore_on_run"`
}

// LoadConfig reads path over the defaults. Keys missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Driver.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverConfig{
			FrameRate:     60,
			FixedStep:     20 * time.Millisecond,
			MaxFixedSteps: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		State: StateConfig{
			Path:         "pps-state.yaml",
			RestoreOnRun: true,
		},
	}
}

func (c DriverConfig) validate() error {
	switch {
	case c.FrameRate <= 0:
		return fmt.Errorf("driver.frame_rate must be positive, got %d", c.FrameRate)
	case c.FixedStep <= 0:
		return fmt.Errorf("driver.fixed_step must be positive, got %s", c.FixedStep)
	case c.MaxFixedSteps <= 0:
		return fmt.Errorf("driver.max_fixed_steps must be positive, got %d", c.MaxFixedSteps)
	}
	return nil
}

// FrameInterval returns the wall-clock length of one frame.
func (c DriverConfig) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}

// NewLogger builds a zap logger. Unknown levels fall back to info.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
