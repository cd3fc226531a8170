package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SessionError reports a lifecycle operation attempted in the wrong state or
// a teardown/finalization failure.
type SessionError struct {
	Op      string
	State   State
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s (state %s): %s", e.Op, e.State, e.Message)
}

func (e *SessionError) Unwrap() error { return e.Err }

// InitializationError reports a failure while acquiring the engine, creating
// the browsing context, injecting authentication, or opening the page. The
// session lands in the failed state but remains safely closeable.
type InitializationError struct {
	Stage string
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("session initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// NavFailureKind is the closed classification of navigation failures. It
// exists so calling code can give actionable guidance without inspecting
// engine-specific error strings.
type NavFailureKind string

const (
	NavTimeout           NavFailureKind = "timeout"
	NavInvalidURL        NavFailureKind = "invalid-url"
	NavDNSFailure        NavFailureKind = "dns-resolution-failure"
	NavConnectionRefused NavFailureKind = "connection-refused"
	NavConnectionTimeout NavFailureKind = "connection-timeout"
	NavNoNetwork         NavFailureKind = "no-network"
	NavCertificate       NavFailureKind = "certificate-error"
	NavOther             NavFailureKind = "other"
)

// NavigationError reports a failed navigation with its classification.
type NavigationError struct {
	URL  string
	Kind NavFailureKind
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %q failed (%s): %s", e.URL, e.Kind, guidance(e.Kind))
}

func (e *NavigationError) Unwrap() error { return e.Err }

func guidance(kind NavFailureKind) string {
	switch kind {
	case NavTimeout:
		return "the page took too long to load; the site may be slow or unresponsive"
	case NavInvalidURL:
		return "the URL is not properly formatted (expected e.g. https://example.com)"
	case NavDNSFailure:
		return "the domain name could not be resolved; check the URL spelling and your connection"
	case NavConnectionRefused:
		return "the server refused the connection; it may be down or the URL may be wrong"
	case NavConnectionTimeout:
		return "the server took too long to respond"
	case NavNoNetwork:
		return "no internet connection detected"
	case NavCertificate:
		return "the site's TLS certificate is invalid or expired"
	default:
		return "the browser engine reported an unclassified failure"
	}
}

// navErrorTable maps engine error substrings to the closed taxonomy. This
// mapping is inherently best-effort and versioned against the Chrome net
// error strings surfaced through chromedp as of CDP r1380.
var navErrorTable = []struct {
	substring string
	kind      NavFailureKind
}{
	{"Cannot navigate to invalid URL", NavInvalidURL},
	{"net::ERR_INVALID_URL", NavInvalidURL},
	{"net::ERR_NAME_NOT_RESOLVED", NavDNSFailure},
	{"net::ERR_CONNECTION_REFUSED", NavConnectionRefused},
	{"net::ERR_CONNECTION_TIMED_OUT", NavConnectionTimeout},
	{"net::ERR_TIMED_OUT", NavConnectionTimeout},
	{"net::ERR_INTERNET_DISCONNECTED", NavNoNetwork},
	{"net::ERR_NETWORK_CHANGED", NavNoNetwork},
	{"net::ERR_CERT_", NavCertificate},
	{"net::ERR_SSL_", NavCertificate},
}

// ClassifyNavigationError wraps a low-level navigation failure in a
// NavigationError with its taxonomy kind.
func ClassifyNavigationError(url string, err error) *NavigationError {
	kind := NavOther
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = NavTimeout
	default:
		msg := err.Error()
		for _, row := range navErrorTable {
			if strings.Contains(msg, row.substring) {
				kind = row.kind
				break
			}
		}
		// chromedp surfaces its own deadline text in some paths.
		if kind == NavOther && strings.Contains(msg, "context deadline exceeded") {
			kind = NavTimeout
		}
	}
	return &NavigationError{URL: url, Kind: kind, Err: err}
}
