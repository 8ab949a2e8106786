// Package telemetry exposes the outcomes of a batch as prometheus metrics.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nhatthm/urlgetter/internal/fetcher"
)

const namespace = "urlgetter"

// Recorder records the outcomes into prometheus metrics.
type Recorder struct {
	outcomes *prometheus.CounterVec
	latency  prometheus.Histogram
}

// Observe records an outcome.
func (r *Recorder) Observe(o fetcher.Outcome) {
	r.outcomes.WithLabelValues(fetcher.Kind(o)).Inc()

	if s, ok := o.(fetcher.Success); ok {
		r.latency.Observe(s.DurationMs())
	}
}

// NewRecorder creates a new Recorder and registers its metrics.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "outcomes_total",
			Help:      "Number of settled fetches, partitioned by outcome kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_milliseconds",
			Help:      "Duration of the successful fetches in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 12), // nolint: gomnd // From 5ms to ~10s.
		}),
	}

	for _, c := range []prometheus.Collector{r.outcomes, r.latency} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("could not register metrics: %w", err)
		}
	}

	// Export all the kinds, even when they are zero.
	for _, o := range []fetcher.Outcome{fetcher.Success{}, fetcher.InvalidURL{}, fetcher.ConnectionError{}, fetcher.TimedOut{}} {
		r.outcomes.WithLabelValues(fetcher.Kind(o))
	}

	return r, nil
}

// WriteFile writes the gathered metrics to a file in the prometheus text format.
func WriteFile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("could not write metrics: %w", err)
	}

	return nil
}
