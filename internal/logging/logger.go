// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger flavor and minimum level.
type Config struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// New builds a zap.Logger configured for development or production.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Development {
		zc := zap.NewDevelopmentConfig()
		zc.Level = level
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := zc.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.DisableStacktrace = false
	zc.EncoderConfig.TimeKey = "ts"
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

func parseLevel(raw string) (zap.AtomicLevel, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}
	level, err := zap.ParseAtomicLevel(strings.ToLower(raw))
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
