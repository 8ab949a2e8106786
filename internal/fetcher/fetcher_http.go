package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/google/uuid"
)

// defaultUserAgent is the user agent sent with every request.
const defaultUserAgent = `urlgetter/1.0 (+https://github.com/nhatthm/urlgetter)`

var _ Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher fetches urls over HTTP.
type HTTPFetcher struct {
	client     *http.Client
	log        ctxd.Logger
	onDeadline DeadlineHandler

	// timeout is the deadline of a batch, counted from the dispatch. Default value is defaultTimeout.
	timeout time.Duration
	// concurrencyLimit is the maximum number of requests in flight. Default value is defaultConcurrencyLimit.
	concurrencyLimit int
	// perSecond paces the dispatches, 0 means no pacing.
	perSecond float64
	// userAgent is sent with every request. Default value is defaultUserAgent.
	userAgent string

	limiter     *Limiter
	limiterOnce sync.Once
}

// FetchAll fetches all the urls concurrently.
//
// Invalid urls settle immediately, before FetchAll returns. The valid ones are requested concurrently with at most
// concurrencyLimit requests in flight. All the requests share one deadline, when it fires the outstanding requests are
// canceled and settle as TimedOut, and the deadline handler is called once.
//
// In order to abandon the batch earlier, the caller should cancel the context. The outstanding requests then settle as
// TimedOut but the deadline handler is not called.
func (f *HTTPFetcher) FetchAll(ctx context.Context, urls []string) (<-chan Outcome, error) {
	if err := f.validate(urls); err != nil {
		return nil, err
	}

	limiter := f.Limiter()
	ctx = ctxd.AddFields(ctx, "fetcher.batch_id", uuid.NewString())

	f.log.Debug(ctx, "started batch",
		"fetcher.num_urls", len(urls),
		"fetcher.concurrency_limit", limiter.Capacity(),
	)

	// The channel can hold all the outcomes, no request has to wait for the consumer.
	outcomes := make(chan Outcome, len(urls))
	gov := NewGovernor(f.timeout, f.onDeadline, f.log)
	taskCtx := gov.Start(ctx)

	var wg sync.WaitGroup

	for i, raw := range urls {
		entry := URLEntry{URL: raw, Index: i}

		target, err := ValidateURL(raw)
		if err != nil {
			f.log.Error(ctxd.AddFields(ctx, "fetcher.http.url", raw), "invalid url", "error", err)

			outcomes <- InvalidURL{URLEntry: entry, Err: err}

			continue
		}

		wg.Add(1)

		go func(entry URLEntry, target *url.URL) {
			defer wg.Done()

			outcomes <- f.fetch(taskCtx, gov, limiter, entry, target)
		}(entry, target)
	}

	settled := make(chan struct{})

	go func() {
		wg.Wait()
		close(settled)
	}()

	go func() {
		defer close(outcomes)

		fired := gov.Race(ctx, settled)

		f.log.Debug(ctx, "finished batch", "fetcher.deadline_fired", fired)
	}()

	return outcomes, nil
}

// Limiter returns the connection limiter that is shared by all the batches.
func (f *HTTPFetcher) Limiter() *Limiter {
	f.limiterOnce.Do(func() {
		f.limiter = NewLimiter(f.concurrencyLimit, f.perSecond)
	})

	return f.limiter
}

func (f *HTTPFetcher) validate(urls []string) error {
	switch {
	case len(urls) == 0:
		return fatal(ErrNoURLs)

	case f.timeout <= 0:
		return fatal(ErrInvalidTimeout)

	case f.concurrencyLimit <= 0:
		return fatal(ErrInvalidConcurrencyLimit)

	case f.perSecond < 0:
		return fatal(ErrInvalidRate)
	}

	return nil
}

// fetch requests a valid url and classifies the result.
func (f *HTTPFetcher) fetch(ctx context.Context, gov *Governor, limiter *Limiter, entry URLEntry, target *url.URL) Outcome {
	ctx = ctxd.AddFields(ctx,
		"fetcher.http.index", entry.Index,
		"fetcher.http.url", entry.URL,
	)

	if err := limiter.Acquire(ctx); err != nil {
		f.log.Debug(ctx, "abandoned while waiting for permit", "error", err)

		return TimedOut{URLEntry: entry}
	}

	defer limiter.Release()

	statusCode, elapsed, err := f.doRequest(ctx, target)

	// A response that arrives after the cancellation is discarded.
	if ctx.Err() != nil || gov.Expired() {
		f.log.Debug(ctx, "abandoned request", "error", ErrTimedOut)

		return TimedOut{URLEntry: entry}
	}

	if err != nil {
		f.log.Error(ctx, "connection error", "error", err)

		return ConnectionError{URLEntry: entry, Host: target.Hostname(), Err: err}
	}

	f.log.Debug(ctx, "finished fetching",
		"http.status_code", statusCode,
		"fetcher.http.duration", elapsed.String(),
	)

	return Success{URLEntry: entry, StatusCode: statusCode, Duration: elapsed}
}

// doRequest sends the request and reads the whole response body. The duration covers both.
func (f *HTTPFetcher) doRequest(ctx context.Context, target *url.URL) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		// This should not happen because the context is not nil and the url is validated by the caller.
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	f.log.Debug(ctx, "send http request", "http.user_agent", f.userAgent)

	startTime := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to send http request: %w", err)
	}

	defer resp.Body.Close() // nolint: errcheck

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, 0, fmt.Errorf("failed to read http response: %w", err)
	}

	return resp.StatusCode, time.Since(startTime), nil
}

// NewHTTPFetcher creates a new HTTPFetcher.
//
// Usage:
//
//	f := NewHTTPFetcher(WithTimeout(5 * time.Second))
//
//	outcomes, err := f.FetchAll(ctx, []string{"https://example.com", "example.org"})
//	if err != nil {
//		return err
//	}
//
//	for o := range outcomes {
//		fmt.Printf("%s: %s\n", o.Source().URL, Kind(o))
//	}
func NewHTTPFetcher(opts ...HTTPFetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{}, // Default HTTP Client, the deadline is enforced by the governor.
		log:    ctxd.NoOpLogger{},

		timeout:          defaultTimeout,
		concurrencyLimit: defaultConcurrencyLimit,
		userAgent:        defaultUserAgent,
	}

	for _, opt := range opts {
		opt.applyHTTPFetcherOption(f)
	}

	return f
}

// HTTPFetcherOption is option to set up HTTPFetcher.
type HTTPFetcherOption interface {
	applyHTTPFetcherOption(f *HTTPFetcher)
}

type httpFetcherOptionFunc func(f *HTTPFetcher)

func (fn httpFetcherOptionFunc) applyHTTPFetcherOption(f *HTTPFetcher) {
	fn(f)
}

// WithLogger sets logger for HTTPFetcher.
func WithLogger(l ctxd.Logger) HTTPFetcherOption {
	return httpFetcherOptionFunc(func(f *HTTPFetcher) {
		f.log = l
	})
}

// WithTimeout sets the deadline of a batch.
func WithTimeout(d time.Duration) HTTPFetcherOption {
	return httpFetcherOptionFunc(func(f *HTTPFetcher) {
		f.timeout = d
	})
}

// WithConcurrencyLimit sets the maximum number of requests in flight.
func WithConcurrencyLimit(n int) HTTPFetcherOption {
	return httpFetcherOptionFunc(func(f *HTTPFetcher) {
		f.concurrencyLimit = n
	})
}

// WithRate paces the dispatches to n requests per second. 0 disables the pacing.
func WithRate(n float64) HTTPFetcherOption {
	return httpFetcherOptionFunc(func(f *HTTPFetcher) {
		f.perSecond = n
	})
}

// WithTransport sets the transport of the HTTP client.
func WithTransport(rt http.RoundTripper) HTTPFetcherOption {
	return httpFetcherOptionFunc(func(f *HTTPFetcher) {
		f.client.Transport = rt
	})
}

// WithUserAgent sets the user agent of the requests.
func WithUserAgent(ua string) HTTPFetcherOption {
	return httpFetcherOptionFunc(func(f *HTTPFetcher) {
		f.userAgent = ua
	})
}

// WithDeadlineHandler sets the function that is called once when the deadline of a batch fires.
func WithDeadlineHandler(h DeadlineHandler) HTTPFetcherOption {
	return httpFetcherOptionFunc(func(f *HTTPFetcher) {
		f.onDeadline = h
	})
}
