// Package reliability classifies upstream failures and retries the ones
// worth repeating.
package reliability

import (
	"errors"
	"fmt"
	"time"
)

// IsRetryableHTTPStatus reports whether an upstream status is transient.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableRealtimeMessageType classifies error frames from streaming
// speech providers.
func IsRetryableRealtimeMessageType(messageType string) bool {
	switch messageType {
	case "rate_limited", "resource_exhausted", "queue_overflow", "error":
		return true
	default:
		return false
	}
}

// StatusError is a non-2xx reply from an upstream HTTP API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// IsRetryable reports whether err wraps a transient StatusError.
func IsRetryable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && IsRetryableHTTPStatus(se.Code)
}

// ExponentialBackoff doubles base per attempt up to cap.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
