// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production zap logger at the given level. "debug" switches
// to the development encoder. Unknown levels fall back to info.
func New(level string) (*zap.Logger, error) {
	return build(level)
}

// NewFile is New writing to path instead of stderr. The terminal dashboard
// uses it since it owns the screen.
func NewFile(level, path string) (*zap.Logger, error) {
	return build(level, path)
}

func build(level string, paths ...string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if len(paths) > 0 {
		cfg.OutputPaths = paths
		cfg.ErrorOutputPaths = paths
	}
	return cfg.Build()
}
