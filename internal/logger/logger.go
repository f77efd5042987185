package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	defaultLogger *zap.SugaredLogger
	level         = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	once          sync.Once
)

// Init initializes the default logger with a JSON encoder writing to stdout.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		cfg.Sampling = nil

		z, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
		if err != nil {
			z = zap.NewNop()
		}
		zap.ReplaceGlobals(z)
		defaultLogger = z.Sugar()
		defaultLogger.Debugw("Logger initialized")
	})
}

// Get returns the initialized default logger.
// It calls Init() to ensure the logger is ready before returning it.
func Get() *zap.SugaredLogger {
	Init()
	return defaultLogger
}

// Configure sets the minimum level of the default logger ("debug", "info",
// "warn", "error"). Unknown values fall back to info.
func Configure(lvl string) {
	level.SetLevel(parseLevel(lvl))
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered entries of the default logger.
func Sync() {
	if defaultLogger != nil {
		_ = defaultLogger.Sync()
	}
}

// Info logs an informational message using the default logger.
func Info(msg string, args ...any) {
	Get().Infow(msg, args...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	Get().Warnw(msg, args...)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Get().Errorw(msg, args...)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	Get().Debugw(msg, args...)
}
