package fetcher

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ValidateURL checks the url string before any network attempt is made.
//
// - The scheme must be http or https. A url without scheme, such as `example.com`, is invalid.
// - The host must not be empty.
// - The port, if any, must be a number between 1 and 65535.
// - The hostname must be an ip address or a domain name that is valid for lookup, see idna.Lookup.
//
// All the returned errors wrap ErrInvalidURL.
func ValidateURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, err.Error())
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: parse %q: %s %q", ErrInvalidURL, s, ErrUnsupportedScheme, u.Scheme)
	}

	if u.Opaque != "" || u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: parse %q: %s", ErrInvalidURL, s, ErrMissingHostname)
	}

	if port := u.Port(); port != "" {
		if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
			return nil, fmt.Errorf("%w: parse %q: %s %q", ErrInvalidURL, s, ErrInvalidPort, port)
		}
	}

	if err := validateHostname(u.Hostname()); err != nil {
		return nil, fmt.Errorf("%w: parse %q: %s: %s", ErrInvalidURL, s, ErrInvalidHostname, err.Error())
	}

	return u, nil
}

func validateHostname(hostname string) error {
	if net.ParseIP(hostname) != nil {
		return nil
	}

	if _, err := idna.Lookup.ToASCII(hostname); err != nil {
		return err // nolint: wrapcheck // The error is wrapped by the caller.
	}

	return nil
}
