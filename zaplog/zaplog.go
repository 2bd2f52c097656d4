// Package zaplog adapts a zap sugared logger to the bus Logger interface.
package zaplog

import (
	"go.uber.org/zap"

	bus "github.com/MintPlayer/spark-bus"
)

// Logger bridges *zap.SugaredLogger to bus.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ bus.Logger = (*Logger)(nil)

// New wraps a sugared zap logger.
func New(sugar *zap.SugaredLogger) *Logger {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}

	return &Logger{sugar: sugar}
}

// Debug implements bus.Logger.
func (l *Logger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

// Info implements bus.Logger.
func (l *Logger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

// Warn implements bus.Logger.
func (l *Logger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// Error implements bus.Logger.
func (l *Logger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}
