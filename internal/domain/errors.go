package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrGenerationUnavailable is the classification returned once the generation
// retry budget is exhausted. The answer composer converts it into the
// grounded-fallback response; it never reaches the caller raw.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// RateLimitError signals an upstream 429. RetryAfter carries the server's
// hint when one was provided, zero otherwise.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// UpstreamStatusError reports a non-2xx response from a model endpoint.
type UpstreamStatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsTransient classifies whether an upstream failure is worth retrying.
// Rate limits, 5xx responses, timeouts and network errors are transient;
// malformed requests and auth failures are not.
func IsTransient(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var us *UpstreamStatusError
	if errors.As(err, &us) {
		return us.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
