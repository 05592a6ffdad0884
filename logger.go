package taxios

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Logger is the structured logger used for debug output. keysAndValues are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLogger{sugar: logger.Sugar()}
}

// NewDevelopmentLogger returns a human readable console logger at debug level.
func NewDevelopmentLogger() (Logger, error) {
	logger, err := zap.NewDevelopmentConfig().Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(logger), nil
}

// NewProductionLogger returns a JSON logger at info level.
func NewProductionLogger() (Logger, error) {
	logger, err := zap.NewProductionConfig().Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(logger), nil
}

// NewSimpleLogger returns a development console logger, falling back to a
// no-op logger if zap cannot open its sinks.
func NewSimpleLogger() Logger {
	logger, err := NewDevelopmentLogger()
	if err != nil {
		return nopLogger{}
	}
	return logger
}

func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *zapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *zapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// newRequestIDGenerator returns a generator of process-unique request IDs.
func newRequestIDGenerator() func() string {
	var counter atomic.Uint64
	return func() string {
		return fmt.Sprintf("req-%d", counter.Inc())
	}
}
