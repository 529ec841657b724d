// Package logging provides the structured logger used across fern.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Logger is the logging interface consumed by every fern component.
type Logger interface {
	WithContext(ctx context.Context) Logger
	WithError(err error) Logger
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a zap-backed Logger. Pretty output uses the development
// console encoder, otherwise JSON production encoding is used.
func New(level string, pretty bool) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &zapLogger{sugar: z.Sugar()}, nil
}

// NewNop returns a Logger that discards everything. Used in tests.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}

	sugar := l.sugar
	if requestID := appctx.GetRequestID(ctx); requestID != "" {
		sugar = sugar.With("request_id", requestID)
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		sugar = sugar.With("trace_id", traceID)
	}

	return &zapLogger{sugar: sugar}
}

func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &zapLogger{sugar: l.sugar.With("error", err.Error())}
}

func (l *zapLogger) WithField(key string, value any) Logger {
	return &zapLogger{sugar: l.sugar.With(key, value)}
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	sugar := l.sugar
	for key, value := range fields {
		sugar = sugar.With(key, value)
	}
	return &zapLogger{sugar: sugar}
}

func (l *zapLogger) Debug(msg string) { l.sugar.Debug(msg) }

func (l *zapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }

func (l *zapLogger) Info(msg string) { l.sugar.Info(msg) }

func (l *zapLogger) Infof(format string, args ...any) { l.sugar.Infof(format, args...) }

func (l *zapLogger) Warn(msg string) { l.sugar.Warn(msg) }

func (l *zapLogger) Warnf(format string, args ...any) { l.sugar.Warnf(format, args...) }

func (l *zapLogger) Error(msg string) { l.sugar.Error(msg) }

func (l *zapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
