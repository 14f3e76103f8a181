// Package logger builds the zap logger used across the application.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings.
type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `mapstructure:"level" default:"info"`
	// Format is the output encoding: console or json.
	Format string `mapstructure:"format" default:"console"`
}

// New creates a zap logger based on the configuration.
func New(cfg Config) (*zap.Logger, error) {
	var config zap.Config

	if cfg.Level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		if lvl, err := zapcore.ParseLevel(cfg.Level); err == nil {
			config.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	if cfg.Format == "console" {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	} else {
		config.Encoding = "json"
	}

	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "message"

	return config.Build()
}
