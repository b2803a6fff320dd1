// Package logging builds the zap loggers handed to every component.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a sugared logger. Debug mode uses the console encoder at debug
// level; otherwise the production JSON encoder at info level.
func New(debug bool) (*zap.SugaredLogger, error) {
	var (
		zapLogger *zap.Logger
		err       error
	)

	if debug {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}

	return zapLogger.Sugar(), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
