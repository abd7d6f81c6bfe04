package domain

import "context"

// LLMClient defines the capability to send prompts to a generative model and
// receive textual responses.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the model output together with reported token usage.
type LLMResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}
