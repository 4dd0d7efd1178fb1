package logger

import (
	"go.uber.org/zap"
)

// New builds a sugared logger. Each caller gets its own instance so tests
// can run with isolated loggers.
func New(development bool) (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error
	if development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
