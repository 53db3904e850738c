package infra

import (
	"fmt"

	"github.com/Vovarama1992/go-utils/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production zap logger at the given level.
// The returned func flushes buffered entries.
func NewLogger(level string) (*logger.ZapLogger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	zcore, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("zap build: %w", err)
	}
	return logger.NewZapLogger(zcore.Sugar()), func() { _ = zcore.Sync() }, nil
}

// NopLogger is used by tests and tools that do not want output.
func NopLogger() *logger.ZapLogger {
	return logger.NewZapLogger(zap.NewNop().Sugar())
}
