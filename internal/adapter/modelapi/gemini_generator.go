package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vedai-backend/internal/domain"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// GeminiGenerator sends prompts to the Gemini generateContent endpoint.
// Low-temperature decoding keeps answers reproducible; resilience (retry,
// backoff, deadlines) lives in the usecase wrapper, not here.
type GeminiGenerator struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
	logger      *slog.Logger
}

// NewGeminiGenerator constructs a generator for the given endpoint and model.
// If client is nil, a default http.Client with the given timeout is used.
func NewGeminiGenerator(baseURL, apiKey, model string, temperature float64, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *GeminiGenerator {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &GeminiGenerator{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
		Client:      c,
		logger:      logger,
	}
}

// Generate sends the prompt and returns the first candidate's text along with
// reported token usage. Non-2xx statuses are mapped onto the domain error
// taxonomy so callers can tell transient failures from permanent ones.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.BaseURL, g.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	start := time.Now()
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call generation endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, g.classifyStatus(resp, string(body))
	}

	var genResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("generation response contained no candidates")
	}

	var sb strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	g.logger.Info("generation_completed",
		slog.String("model", g.Model),
		slog.String("finish_reason", genResp.Candidates[0].FinishReason),
		slog.Int("input_tokens", genResp.UsageMetadata.PromptTokenCount),
		slog.Int("output_tokens", genResp.UsageMetadata.CandidatesTokenCount),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &domain.LLMResponse{
		Text:         strings.TrimSpace(sb.String()),
		InputTokens:  genResp.UsageMetadata.PromptTokenCount,
		OutputTokens: genResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

func (g *GeminiGenerator) classifyStatus(resp *http.Response, body string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if hint := resp.Header.Get("Retry-After"); hint != "" {
			if seconds, err := strconv.Atoi(hint); err == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &domain.RateLimitError{RetryAfter: retryAfter}
	}
	return &domain.UpstreamStatusError{
		Endpoint:   "generation endpoint",
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}

// Version returns the wrapped model name.
func (g *GeminiGenerator) Version() string {
	return g.Model
}

var _ domain.LLMClient = (*GeminiGenerator)(nil)
