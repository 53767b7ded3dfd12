// Package log provides the process-wide zap logger.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

// Until Init runs, everything goes to a no-op logger so library code and
// tests can log freely.
var sugar = zap.NewNop().Sugar()

// Init replaces the package logger. debug selects zap's development config.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("init zap logger: %w", err)
	}

	sugar = l.Sugar()
	return nil
}

// With returns a child sugared logger carrying the given fields.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return sugar.With(keysAndValues...)
}

// Sync flushes buffered entries.
func Sync() {
	_ = sugar.Sync()
}

func Debugw(msg string, keysAndValues ...interface{}) {
	sugar.Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	sugar.Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	sugar.Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...interface{}) {
	sugar.Fatalf(template, args...)
}
