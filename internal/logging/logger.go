// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/employee-store/internal/config"
)

// New builds a zap.Logger configured for development or production at the
// configured level.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	if cfg.Development {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := zcfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = false
	zcfg.EncoderConfig.TimeKey = "ts"
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}
