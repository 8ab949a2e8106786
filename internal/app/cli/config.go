package cli

import (
	"io"
)

// VerbosityLevel is the verbosity level of the application.
type VerbosityLevel uint

const (
	// VerbosityLevelSilent is the silent verbosity level.
	VerbosityLevelSilent VerbosityLevel = iota
	// VerbosityLevelError is the error verbosity level.
	VerbosityLevelError
	// VerbosityLevelDebug is the debug verbosity level.
	VerbosityLevelDebug
)

// DefaultConcurrencyLimit is the maximum number of requests in flight when Config.ConcurrencyLimit is not set.
const DefaultConcurrencyLimit = 100

// Config is the configuration of the application.
type Config struct {
	OutWriter io.Writer // The stream that will receive the results
	ErrWriter io.Writer // The stream that will receive all the log messages and errors.

	Timeout          int            // The deadline of the whole batch, in seconds.
	ConcurrencyLimit int            // The maximum number of requests in flight. Default to DefaultConcurrencyLimit.
	Rate             float64        // The maximum number of requests dispatched per second, 0 means unlimited.
	JSONOutput       bool           // Write the results as JSON documents instead of text.
	PrettyOutput     bool           // Indent the JSON documents.
	MetricsFile      string         // Write the prometheus metrics to this file when the batch is done.
	VerbosityLevel   VerbosityLevel // The verbosity level of the tool.
}
