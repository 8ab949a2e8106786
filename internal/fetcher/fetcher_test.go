package fetcher_test

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/nhatthm/urlgetter/internal/fetcher"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// okResponse returns a response with a body for the request.
func okResponse(req *http.Request, code int) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("ok")),
		Request:    req,
	}
}

// blockingTransport waits until the request is canceled.
func blockingTransport() roundTripperFunc {
	return func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()

		return nil, req.Context().Err()
	}
}

func contextWithDeadline(t *testing.T, d time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	deadline, ok := t.Deadline()
	if !ok {
		deadline = time.Now().Add(d)
	}

	return context.WithDeadline(context.Background(), deadline)
}

// collectOutcomes drains the channel, sorted by input index.
func collectOutcomes(t *testing.T, outcomes <-chan fetcher.Outcome, timeout time.Duration) []fetcher.Outcome {
	t.Helper()

	ctx, cancel := contextWithDeadline(t, timeout)
	defer cancel()

	result := make([]fetcher.Outcome, 0)

	for {
		select {
		case <-ctx.Done():
			t.Errorf("test timed out")

			return result

		case o, ok := <-outcomes:
			if !ok {
				sort.Slice(result, func(i, j int) bool {
					return result[i].Source().Index < result[j].Source().Index
				})

				return result
			}

			result = append(result, o)
		}
	}
}
