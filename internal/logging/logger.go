// Package logging builds the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New sets up the Zap Logger to log to the console in a human readable format.
// An unknown level falls back to info.
func New(level string) *zap.Logger {
	prodConfig := zap.NewProductionConfig()
	prodConfig.Encoding = "console"
	prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	prodConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	prodConfig.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := prodConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
