// Package log provides the process-wide structured logger, backed by zap.
// It exposes a small set of package level functions so callers don't have to
// thread a logger through every component.
package log

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.SugaredLogger]

func init() {
	// usable default until Init is called
	l, _ := zap.NewProduction(zap.AddCallerSkip(1))
	logger.Store(l.Sugar())
}

// Init configures the global logger with the given level ("debug", "info",
// "warn" or "error") and output ("stdout", "stderr" or a file path).
func Init(level, output string) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	switch output {
	case "", "stdout":
		cfg.OutputPaths = []string{"stdout"}
	case "stderr":
		cfg.OutputPaths = []string{"stderr"}
	default:
		cfg.OutputPaths = []string{output}
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	logger.Store(l.Sugar())
}

func Debug(args ...any)                 { logger.Load().Debug(args...) }
func Debugf(format string, args ...any) { logger.Load().Debugf(format, args...) }
func Debugw(msg string, kv ...any)      { logger.Load().Debugw(msg, kv...) }
func Info(args ...any)                  { logger.Load().Info(args...) }
func Infof(format string, args ...any)  { logger.Load().Infof(format, args...) }
func Infow(msg string, kv ...any)       { logger.Load().Infow(msg, kv...) }
func Warn(args ...any)                  { logger.Load().Warn(args...) }
func Warnf(format string, args ...any)  { logger.Load().Warnf(format, args...) }
func Warnw(msg string, kv ...any)       { logger.Load().Warnw(msg, kv...) }
func Error(args ...any)                 { logger.Load().Error(args...) }
func Errorf(format string, args ...any) { logger.Load().Errorf(format, args...) }
func Errorw(msg string, kv ...any)      { logger.Load().Errorw(msg, kv...) }
func Fatal(args ...any)                 { logger.Load().Fatal(args...) }
func Fatalf(format string, args ...any) { logger.Load().Fatalf(format, args...) }

// Sync flushes any buffered log entries.
func Sync() {
	_ = logger.Load().Sync()
}

// Exit is a convenience for deferred cleanup paths that must flush before
// terminating.
func Exit(code int) {
	Sync()
	os.Exit(code)
}
