// Package gdelterr defines the error kinds shared by every source. The
// root package re-exports the sentinels; internal code classifies with
// errors.Is against them.
package gdelterr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", kind) or StatusError;
// never compare directly.
var (
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrBadRequest          = errors.New("bad request")
	ErrAbsent              = errors.New("absent")
	ErrDecompressBomb      = errors.New("decompression bomb")
	ErrParseMalformed      = errors.New("malformed record")
	ErrSchemaDrift         = errors.New("schema drift")
	ErrUnsafeURL           = errors.New("unsafe url")
	ErrUnsafePath          = errors.New("unsafe path")
	ErrMissingCredentials  = errors.New("missing credentials")
	ErrWarehouseFailure    = errors.New("warehouse failure")
	ErrCancelled           = errors.New("cancelled")
)

// StatusError is a slot-level HTTP failure carrying enough context for
// the fetch result's failed list.
type StatusError struct {
	Kind       error
	URL        string
	Status     int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (http %d)", e.Kind, e.URL, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.URL)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// FromStatus classifies an HTTP response status for a slot URL. 404 maps
// to ErrAbsent, which callers treat as a non-error.
func FromStatus(url string, status int, retryAfter time.Duration) error {
	var kind error
	switch {
	case status == http.StatusNotFound:
		kind = ErrAbsent
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status >= 500:
		kind = ErrUpstreamUnavailable
	case status >= 400:
		kind = ErrBadRequest
	default:
		return nil
	}
	return &StatusError{Kind: kind, URL: url, Status: status, RetryAfter: retryAfter}
}

// ParseRetryAfter decodes a Retry-After header value, either delay
// seconds or an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Transport wraps a connection-level failure (dial, TLS, timeout) as
// upstream unavailability, preserving context cancellation.
func Transport(url string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrCancelled, url, err)
	}
	return &StatusError{Kind: fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err), URL: url}
}

// Fatal reports whether the error kind must fail the whole fetch rather
// than one slot.
func Fatal(err error) bool {
	return errors.Is(err, ErrUnsafeURL) ||
		errors.Is(err, ErrUnsafePath) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrWarehouseFailure)
}

// FallbackTrigger reports whether a file-path failure justifies switching
// the remainder of the request to the warehouse. Decompression bombs and
// fatal kinds never trigger fallback; they would fail there too or must
// surface.
func FallbackTrigger(err error) bool {
	if err == nil || Fatal(err) {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrBadRequest)
}

// IsAbsent reports whether the error is a routine missing slot.
func IsAbsent(err error) bool { return errors.Is(err, ErrAbsent) }
