// Package logx is the process-wide structured logger. It mirrors the
// configure-once-use-everywhere shape of LanternOps-breeze's logging
// package: Get and Named are safe to call before Init and return a
// no-op logger until Init has run. A logger obtained before Init stays
// a no-op afterwards; only later Get calls see the configured sink.
package logx

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Options configures the process-wide logger.
type Options struct {
	Debug       bool
	LogFilePath string // optional plain append-mode file sink, no rotation
}

// Init builds the process-wide logger and swaps it in atomically;
// Get() calls made after it return the new logger.
func Init(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.Lock(os.Stdout),
			level,
		),
	}

	if opts.LogFilePath != "" {
		f, err := os.OpenFile(opts.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(f),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	current.Store(logger)
	return nil
}

// Get returns the process-wide logger. Safe to call before Init; it
// returns a no-op logger until Init runs, per the switchable-handler
// idiom this package is grounded on.
func Get() *zap.Logger {
	return current.Load()
}

// Named is a convenience wrapper for Get().Named(component).
func Named(component string) *zap.Logger {
	return Get().Named(component)
}

// Sync flushes any buffered log entries; call during shutdown.
func Sync() {
	_ = Get().Sync()
}
