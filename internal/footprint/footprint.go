package footprint

import (
	"context"
	"runtime"
	"time"

	"github.com/bool64/ctxd"
	"github.com/dustin/go-humanize"
)

// DefaultInterval is the default interval between two reports.
const DefaultInterval = 100 * time.Millisecond

// Probe returns the state of a component as key-value pairs for logging.
type Probe func() []interface{}

// Track writes the resources usage and the state of the probes to the debug log at every interval until the context
// is done.
func Track(ctx context.Context, log ctxd.Logger, interval time.Duration, probes ...Probe) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			log.Debug(ctx, "resources usage", snapshot(probes)...)
		}
	}
}

func snapshot(probes []Probe) []interface{} {
	// See: https://golang.org/pkg/runtime/#MemStats
	var m runtime.MemStats

	runtime.ReadMemStats(&m)

	fields := []interface{}{
		"alloc", humanize.IBytes(m.Alloc),
		"total_alloc", humanize.IBytes(m.TotalAlloc),
		"sys", humanize.IBytes(m.Sys),
		"num_gc", m.NumGC,
		"num_goroutine", runtime.NumGoroutine(),
	}

	for _, p := range probes {
		fields = append(fields, p()...)
	}

	return fields
}
