// Package log provides slog loggers that sanitize sensitive values.
//
// The SecureHandler masks, before any handler sees them:
//   - cookies, authorization headers and session identifiers
//   - postback session tokens (__VIEWSTATE, __VIEWSTATE1.., __EVENTVALIDATION)
//     whether logged as attributes, inside url.Values forms, or embedded in
//     form-encoded strings and messages
//   - long opaque base64 values
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
