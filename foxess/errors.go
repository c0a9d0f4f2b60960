package foxess

import (
	"fmt"
	"time"
)

// ConfigError reports missing or malformed credentials. It is raised at
// construction time and is never worth retrying.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("foxess: invalid configuration: %s: %s", e.Field, e.Reason)
}

// RateLimitError is returned when the limiter denies a call. RetryAfter is a
// hint for the caller; the layer itself never sleeps.
type RateLimitError struct {
	RetryAfter time.Duration
	Remaining  int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("foxess: rate limit exceeded, retry in %s (%d requests remaining today)",
		e.RetryAfter.Round(time.Millisecond), e.Remaining)
}

// AuthError means the upstream rejected our signature or token. Retrying
// with the same secret and clock will fail identically, so it is surfaced
// as-is.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("foxess: authentication rejected (status %d): %s", e.Status, e.Message)
}

// APIError is a non-auth upstream failure: an HTTP error status or a
// non-zero errno in the response envelope.
type APIError struct {
	Status  int
	Errno   int
	Message string
}

func (e *APIError) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("foxess: api error %d: %s", e.Errno, e.Message)
	}
	return fmt.Sprintf("foxess: api error (status %d): %s", e.Status, e.Message)
}
