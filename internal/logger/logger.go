// Package logger wraps the zap logger used across BranchLift.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger holds the process-wide zap logger.
type Logger struct {
	Log *zap.Logger
}

// Option adjusts the logger built by Init.
type Option func(*settings)

type settings struct {
	file       string
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
}

// WithFile adds a JSON core that writes to a rotated file at path.
// An empty path leaves file logging off.
func WithFile(path string) Option {
	return func(s *settings) { s.file = strings.TrimSpace(path) }
}

// WithRotation overrides the rotation limits of the file core.
func WithRotation(maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(s *settings) {
		s.maxSizeMB = maxSizeMB
		s.maxBackups = maxBackups
		s.maxAgeDays = maxAgeDays
	}
}

// New returns a Logger backed by a no-op zap logger until Init is called.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds the production zap logger at the given level ("debug",
// "info", "warn", "error"; case-insensitive).
func (l *Logger) Init(level string, opts ...Option) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	s := settings{maxSizeMB: 10, maxBackups: 3, maxAgeDays: 28}
	for _, o := range opts {
		o(&s)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	if s.file != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   s.file,
			MaxSize:    s.maxSizeMB,
			MaxBackups: s.maxBackups,
			MaxAge:     s.maxAgeDays,
			Compress:   true,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), w, lvl)
		zl = zl.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	l.Log = zl
	return nil
}
