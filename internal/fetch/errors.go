package fetch

import (
	"errors"
	"fmt"
)

// ErrStatus is wrapped by TransportError when the server answered with a
// non-2xx status.
var ErrStatus = errors.New("unexpected HTTP status")

// ErrBodyTooLarge is wrapped by TransportError when a response body exceeds
// the client's size limit.
var ErrBodyTooLarge = errors.New("response body too large")

// ErrDecode is returned when a JSON response cannot be decoded.
var ErrDecode = errors.New("failed to decode response")

// TransportError reports a request that failed after all retries.
// It names the URL so the aggregate report can point at the failing page.
type TransportError struct {
	URL        string
	Method     string
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d after %d attempt(s)", e.Method, e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("%s %s: %v after %d attempt(s)", e.Method, e.URL, e.Err, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsBodyTooLarge reports whether err failed on the response size limit.
func IsBodyTooLarge(err error) bool {
	return errors.Is(err, ErrBodyTooLarge)
}
