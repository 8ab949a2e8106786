package fetcher

import (
	"context"
	"time"
)

// defaultTimeout is the default deadline for fetching a whole batch.
const defaultTimeout = 15 * time.Second

// Fetcher fetches a batch of urls.
type Fetcher interface {
	// FetchAll dispatches all the urls and returns a channel that receives exactly one outcome per url, in completion
	// order. The channel is closed when all the urls have settled.
	//
	// A *FatalError is returned if nothing could be dispatched.
	FetchAll(ctx context.Context, urls []string) (<-chan Outcome, error)
}
