// Package collector accumulates the outcomes of a batch.
package collector

import (
	"sync"

	"github.com/nhatthm/urlgetter/internal/fetcher"
)

// Counts is the number of outcomes of each kind.
type Counts struct {
	Success         int
	InvalidURL      int
	ConnectionError int
	TimedOut        int
}

// Total returns the number of all the outcomes.
func (c Counts) Total() int {
	return c.Success + c.InvalidURL + c.ConnectionError + c.TimedOut
}

// Collector stores the settled outcomes of a batch. It is safe for concurrent use.
//
//	c := New()
//
//	for o := range outcomes {
//		c.Record(o)
//	}
//
//	summary, err := metrics.Compute(c.SuccessDurations())
type Collector struct {
	mu sync.Mutex

	outcomes  []fetcher.Outcome
	durations []float64 // Success durations in milliseconds, in completion order.
	counts    Counts
}

// Record appends an outcome to the log and to the bucket of its kind.
func (c *Collector) Record(o fetcher.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes = append(c.outcomes, o)

	switch o := o.(type) {
	case fetcher.Success:
		c.counts.Success++
		c.durations = append(c.durations, o.DurationMs())

	case fetcher.InvalidURL:
		c.counts.InvalidURL++

	case fetcher.ConnectionError:
		c.counts.ConnectionError++

	case fetcher.TimedOut:
		c.counts.TimedOut++
	}
}

// Outcomes returns a copy of all the recorded outcomes, in the order they were recorded.
func (c *Collector) Outcomes() []fetcher.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]fetcher.Outcome, len(c.outcomes))
	copy(result, c.outcomes)

	return result
}

// SuccessDurations returns a copy of the durations of the successful requests, in milliseconds.
func (c *Collector) SuccessDurations() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]float64, len(c.durations))
	copy(result, c.durations)

	return result
}

// Counts returns the number of outcomes of each kind.
func (c *Collector) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts
}

// Len returns the number of recorded outcomes.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.outcomes)
}

// New creates a new empty Collector.
func New() *Collector {
	return &Collector{
		outcomes:  make([]fetcher.Outcome, 0),
		durations: make([]float64, 0),
	}
}
