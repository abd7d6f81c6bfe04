package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"vedai-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	calls     int
	responses []func() (*domain.LLMResponse, error)
}

func (s *scriptedLLM) Generate(_ context.Context, _ string, _ int) (*domain.LLMResponse, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx]()
}

func (s *scriptedLLM) Version() string { return "scripted" }

func transientFailure() (*domain.LLMResponse, error) {
	return nil, &domain.UpstreamStatusError{Endpoint: "generate", StatusCode: 503, Body: "overloaded"}
}

func successResponse() (*domain.LLMResponse, error) {
	return &domain.LLMResponse{Text: "answer [1]", InputTokens: 100, OutputTokens: 20}, nil
}

func testPolicy() GenerationPolicy {
	return GenerationPolicy{
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		BackoffBase:    time.Millisecond,
	}
}

func TestResilientLLMClient_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &scriptedLLM{responses: []func() (*domain.LLMResponse, error){
		transientFailure,
		transientFailure,
		successResponse,
	}}
	client := NewResilientLLMClient(inner, testPolicy(), slog.Default())

	resp, err := client.Generate(context.Background(), "prompt", 512)

	require.NoError(t, err)
	assert.Equal(t, "answer [1]", resp.Text)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientLLMClient_ExhaustsRetryBudget(t *testing.T) {
	inner := &scriptedLLM{responses: []func() (*domain.LLMResponse, error){transientFailure}}
	client := NewResilientLLMClient(inner, testPolicy(), slog.Default())

	_, err := client.Generate(context.Background(), "prompt", 512)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	// Never a fourth attempt.
	assert.Equal(t, 3, inner.calls)
}

func TestResilientLLMClient_DoesNotRetryPermanentFailures(t *testing.T) {
	inner := &scriptedLLM{responses: []func() (*domain.LLMResponse, error){
		func() (*domain.LLMResponse, error) {
			return nil, &domain.UpstreamStatusError{Endpoint: "generate", StatusCode: 401, Body: "bad key"}
		},
	}}
	client := NewResilientLLMClient(inner, testPolicy(), slog.Default())

	_, err := client.Generate(context.Background(), "prompt", 512)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrGenerationUnavailable)
	var statusErr *domain.UpstreamStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 401, statusErr.StatusCode)
	assert.Equal(t, 1, inner.calls)
}

func TestResilientLLMClient_RetriesRateLimitWithoutHint(t *testing.T) {
	inner := &scriptedLLM{responses: []func() (*domain.LLMResponse, error){
		func() (*domain.LLMResponse, error) { return nil, &domain.RateLimitError{} },
		successResponse,
	}}
	client := NewResilientLLMClient(inner, testPolicy(), slog.Default())

	resp, err := client.Generate(context.Background(), "prompt", 512)

	require.NoError(t, err)
	assert.Equal(t, "answer [1]", resp.Text)
	assert.Equal(t, 2, inner.calls)
}

func TestResilientLLMClient_AbandonsRetriesOnCallerDeadline(t *testing.T) {
	inner := &scriptedLLM{responses: []func() (*domain.LLMResponse, error){transientFailure}}
	policy := testPolicy()
	policy.BackoffBase = 200 * time.Millisecond
	client := NewResilientLLMClient(inner, policy, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Generate(ctx, "prompt", 512)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Less(t, time.Since(start), time.Second)
	assert.LessOrEqual(t, inner.calls, 2)
}

func TestResilientLLMClient_VersionPassthrough(t *testing.T) {
	inner := &scriptedLLM{responses: []func() (*domain.LLMResponse, error){successResponse}}
	client := NewResilientLLMClient(inner, testPolicy(), slog.Default())

	assert.Equal(t, "scripted", client.Version())
}

func TestResilientLLMClient_DefaultsApplied(t *testing.T) {
	client := NewResilientLLMClient(&scriptedLLM{responses: []func() (*domain.LLMResponse, error){successResponse}}, GenerationPolicy{}, slog.Default())

	assert.Equal(t, uint(3), client.policy.MaxAttempts)
	assert.Equal(t, 30*time.Second, client.policy.AttemptTimeout)
	assert.Equal(t, 500*time.Millisecond, client.policy.BackoffBase)
	assert.Nil(t, client.limiter)
}

func TestResilientLLMClient_TimeoutClassifiedTransient(t *testing.T) {
	assert.True(t, domain.IsTransient(context.DeadlineExceeded))
	assert.False(t, domain.IsTransient(errors.New("parse failure")))
}
