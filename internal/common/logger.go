package common

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a slog.Logger backed by a zap core. The returned func
// flushes buffered entries and should be deferred by the caller.
func NewLogger(cfg LogConfig) (*slog.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("invalid LOG_LEVEL %q", cfg.Level), err)
	}

	var zcfg zap.Config
	switch cfg.Format {
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := zcfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}
	logger := slog.New(zapslog.NewHandler(zl.Core()))
	return logger, func() { _ = zl.Sync() }, nil
}
