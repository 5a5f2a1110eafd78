package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRootURL is returned when the crawl root is not an absolute http(s) URL.
	ErrInvalidRootURL = errors.New("invalid root URL")

	// ErrUnclassifiableRoot is returned when the root page cannot be parsed
	// as HTML, so the crawl has nothing to start from.
	ErrUnclassifiableRoot = errors.New("root page cannot be classified")

	// ErrVoteCount is wrapped by RowParseError when a count cell is not a
	// non-negative integer.
	ErrVoteCount = errors.New("vote count is not an integer")
)

// RowParseError describes a data row whose count cell could not be parsed.
type RowParseError struct {
	// URL is the page the row was read from.
	URL string

	// Label is the first cell of the row.
	Label string

	// Value is the raw count cell.
	Value string

	Err error
}

// Error implements the error interface.
func (e *RowParseError) Error() string {
	return fmt.Sprintf("row %q: %q: %v", e.Label, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *RowParseError) Unwrap() error {
	return e.Err
}
