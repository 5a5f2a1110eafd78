package postback

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken is returned when a list page lacks a required
	// session token, so no further request can be formed.
	ErrMissingToken = errors.New("missing session token")

	// ErrMissingField is wrapped by MissingFieldError.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidDetailLink is returned for detail hrefs that cannot be resolved.
	ErrInvalidDetailLink = errors.New("invalid detail link")

	// ErrInvalidRootURL is returned when the list URL is not an absolute http(s) URL.
	ErrInvalidRootURL = errors.New("invalid root URL")
)

// MissingFieldError reports a detail page on which a required element
// does not exist. An element that exists but is empty is not an error.
type MissingFieldError struct {
	// URL is the detail page.
	URL string

	// Field is the output column the element feeds.
	Field string

	// ID is the element id that was looked up.
	ID string
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: field %q (#%s) not found", e.URL, e.Field, e.ID)
}

// Unwrap returns ErrMissingField.
func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}
