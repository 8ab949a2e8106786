package fetcher

import "time"

var (
	_ Outcome = Success{}
	_ Outcome = InvalidURL{}
	_ Outcome = ConnectionError{}
	_ Outcome = TimedOut{}
)

// URLEntry is a url from the input and its position in the input.
type URLEntry struct {
	URL   string
	Index int
}

// Source returns the entry that the outcome belongs to.
func (e URLEntry) Source() URLEntry {
	return e
}

// Outcome is the settled result of fetching one URLEntry. It is one of Success, InvalidURL, ConnectionError or
// TimedOut, consumers are expected to switch on the concrete type:
//
//	switch o := outcome.(type) {
//	case fetcher.Success:
//	case fetcher.InvalidURL:
//	case fetcher.ConnectionError:
//	case fetcher.TimedOut:
//	}
type Outcome interface {
	Source() URLEntry
	isOutcome()
}

// Success is the outcome of a request that received a response.
type Success struct {
	URLEntry

	StatusCode int
	Duration   time.Duration
}

func (Success) isOutcome() {}

// DurationMs returns the duration of the request in milliseconds.
func (s Success) DurationMs() float64 {
	return float64(s.Duration) / float64(time.Millisecond)
}

// InvalidURL is the outcome of a url that failed the pre-flight validation.
type InvalidURL struct {
	URLEntry

	Err error
}

func (InvalidURL) isOutcome() {}

// ConnectionError is the outcome of a request that failed to resolve, connect or read the response.
type ConnectionError struct {
	URLEntry

	Host string
	Err  error
}

func (ConnectionError) isOutcome() {}

// TimedOut is the outcome of a request that was abandoned because the batch was canceled.
type TimedOut struct {
	URLEntry
}

func (TimedOut) isOutcome() {}

// Kind returns a short name of the outcome type, it is used for labels and output.
func Kind(o Outcome) string {
	switch o.(type) {
	case Success:
		return "success"
	case InvalidURL:
		return "invalid_url"
	case ConnectionError:
		return "connection_error"
	case TimedOut:
		return "timed_out"
	}

	return "unknown"
}
