package zap

import (
	logpkg "github.com/LerianStudio/lib-resilience/resilience/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger and implements log.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion: *Logger implements log.Logger.
var _ logpkg.Logger = (*Logger)(nil)

// Config controls the construction of a zap-backed Logger.
type Config struct {
	// Level is the minimum level emitted. Defaults to InfoLevel.
	Level logpkg.LogLevel

	// Development enables console encoding and stack traces on warnings.
	Development bool

	// InitialFields are attached to every log entry.
	InitialFields map[string]any
}

// New builds a zap-backed Logger from the given config.
func New(cfg Config) (*Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	zapCfg.Level = zap.NewAtomicLevelAt(toZapLevel(cfg.Level))
	if len(cfg.InitialFields) > 0 {
		zapCfg.InitialFields = cfg.InitialFields
	}

	base, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{sugar: base.Sugar()}, nil
}

// FromZap wraps an existing zap.Logger. Useful when the embedding service
// already owns a configured zap instance.
func FromZap(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}

	return &Logger{sugar: base.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *Logger) must() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}

	return l.sugar
}

// Info implements the Info Logger interface function.
func (l *Logger) Info(args ...any) { l.must().Info(args...) }

// Infof implements the Infof Logger interface function.
func (l *Logger) Infof(format string, args ...any) { l.must().Infof(format, args...) }

// Warn implements the Warn Logger interface function.
func (l *Logger) Warn(args ...any) { l.must().Warn(args...) }

// Warnf implements the Warnf Logger interface function.
func (l *Logger) Warnf(format string, args ...any) { l.must().Warnf(format, args...) }

// Error implements the Error Logger interface function.
func (l *Logger) Error(args ...any) { l.must().Error(args...) }

// Errorf implements the Errorf Logger interface function.
func (l *Logger) Errorf(format string, args ...any) { l.must().Errorf(format, args...) }

// Debug implements the Debug Logger interface function.
func (l *Logger) Debug(args ...any) { l.must().Debug(args...) }

// Debugf implements the Debugf Logger interface function.
func (l *Logger) Debugf(format string, args ...any) { l.must().Debugf(format, args...) }

// WithFields returns a child logger carrying additional key/value pairs.
//
//nolint:ireturn
func (l *Logger) WithFields(fields ...any) logpkg.Logger {
	return &Logger{sugar: l.must().With(fields...)}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.must().Sync()
}

func toZapLevel(level logpkg.LogLevel) zapcore.Level {
	switch level {
	case logpkg.DebugLevel:
		return zapcore.DebugLevel
	case logpkg.InfoLevel:
		return zapcore.InfoLevel
	case logpkg.WarnLevel:
		return zapcore.WarnLevel
	case logpkg.ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
