package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
}

// NewLogger builds the process-wide zap logger. Debug switches to the
// development config with human-readable output and debug-level logging.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg.Debug {
		c := zap.NewDevelopmentConfig()
		c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return c.Build()
	}
	return zap.NewProduction()
}

func NewNoopLogger() *zap.Logger {
	return zap.NewNop()
}
