package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoRootURL is returned when no root URL is configured.
	ErrNoRootURL = errors.New("no root URL specified: pass one as an argument or set rootURL in a profile")

	// ErrInvalidRootURL is returned when a root URL is not an absolute http(s) URL.
	ErrInvalidRootURL = errors.New("invalid root URL: must be an absolute http or https URL")

	// ErrInvalidDetailBaseURL is returned when the detail base URL is not an absolute http(s) URL.
	ErrInvalidDetailBaseURL = errors.New("invalid detail base URL: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidDepth is returned when the depth cap is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoContests is returned when a feature-service run has no contests.
	ErrNoContests = errors.New("no contests specified: use --contest or set contests in a profile")

	// ErrInvalidSummaryFormat is returned for an unknown summary format.
	ErrInvalidSummaryFormat = errors.New("invalid summary format: must be text, markdown or json")
)

// Profile file errors.
var (
	// ErrProfileNotFound is returned when the named profile is not in the file.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileKind is returned when a profile is applied to a command of another kind.
	ErrProfileKind = errors.New("profile kind does not match the command")
)
