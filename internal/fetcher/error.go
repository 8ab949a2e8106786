package fetcher

var (
	_ error = (*Error)(nil)
	_ error = (*FatalError)(nil)
)

const (
	// ErrInvalidURL indicates that the source url did not pass the pre-flight validation.
	ErrInvalidURL = Error("invalid url")
	// ErrMissingHostname indicates that the source url is missing hostname.
	ErrMissingHostname = Error("missing hostname")
	// ErrUnsupportedScheme indicates that the source url contains an unsupported scheme.
	ErrUnsupportedScheme = Error("unsupported scheme")
	// ErrInvalidPort indicates that the port of the source url is not a number between 1 and 65535.
	ErrInvalidPort = Error("invalid port")
	// ErrInvalidHostname indicates that the hostname is neither an ip address nor a valid domain name.
	ErrInvalidHostname = Error("invalid hostname")

	// ErrTimedOut indicates that the request was abandoned before it completed.
	ErrTimedOut = Error("request timed out")

	// ErrNoURLs indicates that there is nothing to fetch.
	ErrNoURLs = Error("no urls to fetch")
	// ErrInvalidTimeout indicates that the global timeout is not positive.
	ErrInvalidTimeout = Error("timeout must be greater than 0")
	// ErrInvalidConcurrencyLimit indicates that the connection limit is not positive.
	ErrInvalidConcurrencyLimit = Error("concurrency limit must be greater than 0")
	// ErrInvalidRate indicates that the dispatch rate is negative.
	ErrInvalidRate = Error("rate must not be negative")
)

// Error is a fetcher error.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// FatalError is an error that aborts the whole batch before anything is dispatched.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(err error) error {
	return &FatalError{Err: err}
}
