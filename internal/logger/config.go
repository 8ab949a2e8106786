package logger

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// Level is a log level.
type Level = zapcore.Level

const (
	// DebugLevel logs the lifecycle of every request.
	DebugLevel = zapcore.DebugLevel
	// InfoLevel logs the lifecycle of a batch.
	InfoLevel = zapcore.InfoLevel
	// ErrorLevel logs only the failures.
	ErrorLevel = zapcore.ErrorLevel
)

// Config is the configuration for the logger.
type Config struct {
	// Output receives the log messages, nothing is logged if it is nil.
	Output io.Writer
	Level  Level
	// StripTime disables time variance in logger.
	StripTime bool
}
