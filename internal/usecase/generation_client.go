package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vedai-backend/internal/domain"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// GenerationPolicy bounds how hard we lean on the generation endpoint:
// attempts per request, a timeout per attempt, the spacing between attempts
// and an outbound requests-per-second cap shared across callers.
type GenerationPolicy struct {
	MaxAttempts    uint
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	RPS            float64
}

// ResilientLLMClient wraps a raw LLM client with retries, per-attempt
// timeouts and rate limiting. Transient failures (429, 5xx, timeouts) are
// retried with exponential backoff, honoring a Retry-After hint when the
// upstream supplies one. Non-transient failures and caller cancellation stop
// the loop immediately.
type ResilientLLMClient struct {
	inner   domain.LLMClient
	policy  GenerationPolicy
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewResilientLLMClient(inner domain.LLMClient, policy GenerationPolicy, logger *slog.Logger) *ResilientLLMClient {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 3
	}
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = 30 * time.Second
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = 500 * time.Millisecond
	}
	var limiter *rate.Limiter
	if policy.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(policy.RPS), 1)
	}
	return &ResilientLLMClient{
		inner:   inner,
		policy:  policy,
		limiter: limiter,
		logger:  logger,
	}
}

func (c *ResilientLLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	attempt := 0
	operation := func() (*domain.LLMResponse, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
		resp, err := c.inner.Generate(attemptCtx, prompt, maxTokens)
		cancel()
		if err == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		var rateLimited *domain.RateLimitError
		if errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0 {
			c.logger.Warn("generation_rate_limited",
				slog.Int("attempt", attempt),
				slog.Duration("retry_after", rateLimited.RetryAfter),
			)
			return nil, backoff.RetryAfter(retryAfterSeconds(rateLimited.RetryAfter))
		}

		if !domain.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}

		c.logger.Warn("generation_attempt_failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.policy.BackoffBase

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.policy.MaxAttempts),
	)
	if err != nil {
		if domain.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("generation_exhausted_retries",
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *ResilientLLMClient) Version() string {
	return c.inner.Version()
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(d / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
