package logger

import (
	"io"

	"github.com/bool64/ctxd"
	"github.com/bool64/zapctxd"
)

// NewLogger initiates a new contextualized zap logger.
func NewLogger(cfg Config) *zapctxd.Logger {
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}

	return zapctxd.New(zapctxd.Config{
		Level:   cfg.Level,
		DevMode: true,
		FieldNames: ctxd.FieldNames{
			Timestamp: "timestamp",
			Message:   "message",
		},
		Output:    out,
		StripTime: cfg.StripTime,
	})
}
