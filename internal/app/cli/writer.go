package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nhatthm/urlgetter/internal/collector"
	"github.com/nhatthm/urlgetter/internal/fetcher"
	"github.com/nhatthm/urlgetter/internal/metrics"
)

const (
	jsonIndent = "  "
	separator  = "-----"
)

// resultWriter writes the progress and the summary of a batch to the output.
//
// The methods are safe for concurrent use. After the first write error, nothing is written anymore and the error is
// returned by Err.
type resultWriter interface {
	Outcome(o fetcher.Outcome)
	Deadline(ctx context.Context, timeout time.Duration)
	Summary(counts collector.Counts, s metrics.Summary, err error)
	Err() error
}

// guardedWriter serializes the writes and remembers the first error.
type guardedWriter struct {
	mu  sync.Mutex
	out io.Writer
	err error
}

func (w *guardedWriter) write(fn func(out io.Writer) error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return
	}

	if err := fn(w.out); err != nil {
		w.err = fmt.Errorf("could not write to output: %w", err)
	}
}

// Err returns the first write error.
func (w *guardedWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.err
}

// deadlineNotice holds the timeout notice until all the outcomes are written.
type deadlineNotice struct {
	timeout atomic.Int64
}

// Deadline records the timeout, it is the deadline handler of the fetcher.
func (n *deadlineNotice) Deadline(_ context.Context, timeout time.Duration) {
	n.timeout.Store(int64(timeout))
}

// flush writes the notice if the deadline fired.
func (n *deadlineNotice) flush(ctx context.Context, w resultWriter) {
	if t := time.Duration(n.timeout.Load()); t > 0 {
		w.Deadline(ctx, t)
	}
}

type textResultWriter struct {
	guardedWriter
}

var _ resultWriter = (*textResultWriter)(nil)

func (w *textResultWriter) println(format string, args ...interface{}) {
	w.write(func(out io.Writer) error {
		_, err := fmt.Fprintf(out, format+"\n", args...)

		return err
	})
}

// Outcome prints one line for each settled url. The timed out urls are covered by the deadline notice.
func (w *textResultWriter) Outcome(o fetcher.Outcome) {
	switch o := o.(type) {
	case fetcher.Success:
		w.println("Request to %s responded with %d and took %sms to complete", o.URL, o.StatusCode, metrics.Format(o.DurationMs()))

	case fetcher.InvalidURL:
		w.println("%s is an invalid URL", o.URL)

	case fetcher.ConnectionError:
		w.println("Connection error resolving %s", o.Host)
	}
}

// Deadline prints the timeout notice.
func (w *textResultWriter) Deadline(_ context.Context, timeout time.Duration) {
	w.println("Requested timed out after %s seconds", formatSeconds(timeout))
}

// Summary prints the latency statistics after a separator line.
func (w *textResultWriter) Summary(_ collector.Counts, s metrics.Summary, err error) {
	w.println(separator)

	if errors.Is(err, metrics.ErrNoSuccessfulResponses) {
		w.println("No successful responses, metrics are not available.")

		return
	}

	w.println("Mean response time = %sms", metrics.Format(s.Mean))
	w.println("Median response time = %sms", metrics.Format(s.Median))
	w.println("90th percentile of response times = %sms", metrics.Format(s.P90))
}

// textWriter creates a new result writer that prints human readable lines.
func textWriter(out io.Writer) *textResultWriter {
	return &textResultWriter{guardedWriter: guardedWriter{out: out}}
}

// nolint: tagliatelle
type outcomeEvent struct {
	Event      string   `json:"event"`
	URL        string   `json:"url"`
	Kind       string   `json:"kind"`
	StatusCode int      `json:"status_code,omitempty"`
	DurationMs *float64 `json:"duration_ms,omitempty"`
	Host       string   `json:"host,omitempty"`
	Error      *string  `json:"error,omitempty"`
}

// nolint: tagliatelle
type timeoutEvent struct {
	Event          string  `json:"event"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// nolint: tagliatelle
type summaryEvent struct {
	Event            string   `json:"event"`
	Successes        int      `json:"successes"`
	InvalidURLs      int      `json:"invalid_urls"`
	ConnectionErrors int      `json:"connection_errors"`
	TimedOut         int      `json:"timed_out"`
	MeanMs           *float64 `json:"mean_ms"`
	MedianMs         *float64 `json:"median_ms"`
	P90Ms            *float64 `json:"p90_ms"`
}

type jsonResultWriter struct {
	guardedWriter

	pretty bool
}

var _ resultWriter = (*jsonResultWriter)(nil)

func (w *jsonResultWriter) encode(v interface{}) {
	w.write(func(out io.Writer) error {
		enc := json.NewEncoder(out)

		if w.pretty {
			enc.SetIndent("", jsonIndent)
		}

		return enc.Encode(v)
	})
}

// Outcome writes one document for each settled url. The timed out urls are covered by the deadline notice.
func (w *jsonResultWriter) Outcome(o fetcher.Outcome) {
	e := outcomeEvent{
		Event: "outcome",
		URL:   o.Source().URL,
		Kind:  fetcher.Kind(o),
	}

	switch o := o.(type) {
	case fetcher.Success:
		d := metrics.Round(o.DurationMs())

		e.StatusCode = o.StatusCode
		e.DurationMs = &d

	case fetcher.InvalidURL:
		e.Error = errorString(o.Err)

	case fetcher.ConnectionError:
		e.Host = o.Host
		e.Error = errorString(o.Err)

	default:
		return
	}

	w.encode(e)
}

// Deadline writes the timeout notice.
func (w *jsonResultWriter) Deadline(_ context.Context, timeout time.Duration) {
	w.encode(timeoutEvent{Event: "timeout", TimeoutSeconds: timeout.Seconds()})
}

// Summary writes the counts and the latency statistics. The statistics are null when there is no successful response.
func (w *jsonResultWriter) Summary(counts collector.Counts, s metrics.Summary, err error) {
	e := summaryEvent{
		Event:            "summary",
		Successes:        counts.Success,
		InvalidURLs:      counts.InvalidURL,
		ConnectionErrors: counts.ConnectionError,
		TimedOut:         counts.TimedOut,
	}

	if !errors.Is(err, metrics.ErrNoSuccessfulResponses) {
		e.MeanMs, e.MedianMs, e.P90Ms = &s.Mean, &s.Median, &s.P90
	}

	w.encode(e)
}

// jsonWriter creates a new result writer that writes a stream of JSON documents.
func jsonWriter(out io.Writer, pretty bool) *jsonResultWriter {
	return &jsonResultWriter{guardedWriter: guardedWriter{out: out}, pretty: pretty}
}

func errorString(err error) *string {
	if err == nil {
		return nil
	}

	s := err.Error()

	return &s
}

// formatSeconds formats a timeout without trailing zeros, for example 15 or 0.5.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
