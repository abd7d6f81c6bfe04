package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vedai-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// FallbackAnswer is returned whenever the pipeline cannot produce a grounded
// answer: nothing retrieved, nothing similar enough, or generation failed.
const FallbackAnswer = "I don't know based on provided texts."

type AnswerQuestionInput struct {
	Question string
	Filter   domain.ChunkFilter
	TopK     int
	Rerank   bool
}

type Source struct {
	ChunkID    uuid.UUID
	SourceFile string
	Page       int
	Snippet    string
	Similarity float32
}

type AnswerMetadata struct {
	RetrievedCount int
	UsedTopK       int
	Reranked       bool
}

type LLMUsage struct {
	LatencyMS    int64
	InputTokens  int
	OutputTokens int
}

// AnswerQuestionOutput is always fully populated on a nil-error return, even
// on fallback: Metadata reflects what actually happened and Sources is empty
// exactly when the answer text is the fallback.
type AnswerQuestionOutput struct {
	Answer      string
	Sources     []Source
	Metadata    AnswerMetadata
	Usage       LLMUsage
	Fallback    bool
	ErrorDetail string
}

type AnswerQuestionUsecase interface {
	Execute(ctx context.Context, input AnswerQuestionInput) (*AnswerQuestionOutput, error)
}

type AnswerConfig struct {
	DefaultTopK    int
	MaxTopK        int
	MinSimilarity  float32
	MaxTokens      int
	RerankTimeout  time.Duration
	RequestTimeout time.Duration
	CacheSize      int
	CacheTTL       time.Duration
}

type answerQuestionUsecase struct {
	retrieve RetrieveChunksUsecase
	builder  PromptBuilder
	llm      domain.LLMClient
	reranker domain.Reranker
	cfg      AnswerConfig
	cache    *expirable.LRU[string, AnswerQuestionOutput]
	logger   *slog.Logger
}

func NewAnswerQuestionUsecase(
	retrieve RetrieveChunksUsecase,
	builder PromptBuilder,
	llm domain.LLMClient,
	reranker domain.Reranker,
	cfg AnswerConfig,
	logger *slog.Logger,
) AnswerQuestionUsecase {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 8
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 50
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	var cache *expirable.LRU[string, AnswerQuestionOutput]
	if cfg.CacheSize > 0 {
		cache = expirable.NewLRU[string, AnswerQuestionOutput](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return &answerQuestionUsecase{
		retrieve: retrieve,
		builder:  builder,
		llm:      llm,
		reranker: reranker,
		cfg:      cfg,
		cache:    cache,
		logger:   logger,
	}
}

func (u *answerQuestionUsecase) Execute(ctx context.Context, input AnswerQuestionInput) (*AnswerQuestionOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	topK := input.TopK
	if topK <= 0 {
		topK = u.cfg.DefaultTopK
	}
	if topK > u.cfg.MaxTopK {
		topK = u.cfg.MaxTopK
	}

	if u.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.RequestTimeout)
		defer cancel()
	}

	useReranker := input.Rerank && u.reranker != nil

	key := answerCacheKey(question, input.Filter, topK, useReranker)
	if u.cache != nil {
		if cached, ok := u.cache.Get(key); ok {
			u.logger.Info("answer_cache_hit", slog.String("key", key))
			out := cached
			return &out, nil
		}
	}

	retrieved, err := u.retrieve.Execute(ctx, RetrieveChunksInput{
		Question: question,
		Filter:   input.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	candidates := retrieved.Candidates

	out := &AnswerQuestionOutput{
		Sources:  []Source{},
		Metadata: AnswerMetadata{RetrievedCount: len(candidates)},
	}

	if len(candidates) == 0 {
		u.logger.Info("no_matching_content", slog.Bool("filtered", !input.Filter.IsZero()))
		out.Answer = FallbackAnswer
		out.Fallback = true
		return out, nil
	}
	if candidates[0].Similarity < u.cfg.MinSimilarity {
		u.logger.Info("best_match_below_threshold",
			slog.Float64("best_similarity", float64(candidates[0].Similarity)),
			slog.Float64("threshold", float64(u.cfg.MinSimilarity)),
		)
		out.Answer = FallbackAnswer
		out.Fallback = true
		return out, nil
	}

	var reranker domain.Reranker
	if useReranker {
		reranker = u.reranker
	}
	selected, reranked := SelectCandidates(ctx, reranker, question, candidates, topK, u.cfg.RerankTimeout, u.logger)
	out.Metadata.Reranked = reranked

	promptResult, err := u.builder.Build(question, selected)
	if err != nil {
		u.logger.Error("prompt_assembly_failed", slog.String("error", err.Error()))
		out.Answer = FallbackAnswer
		out.Fallback = true
		out.ErrorDetail = err.Error()
		return out, nil
	}
	out.Metadata.UsedTopK = len(promptResult.Slots)

	start := time.Now()
	resp, err := u.llm.Generate(ctx, promptResult.Prompt, u.cfg.MaxTokens)
	out.Usage.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, domain.ErrGenerationUnavailable) {
			u.logger.Error("generation_unavailable", slog.String("error", err.Error()))
			out.Answer = FallbackAnswer
			out.Fallback = true
			out.ErrorDetail = err.Error()
			return out, nil
		}
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	out.Usage.InputTokens = resp.InputTokens
	out.Usage.OutputTokens = resp.OutputTokens

	if strings.TrimSpace(resp.Text) == "" {
		u.logger.Warn("empty_model_response")
		out.Answer = FallbackAnswer
		out.Fallback = true
		out.ErrorDetail = "model returned an empty response"
		return out, nil
	}

	bound := BindCitations(resp.Text, promptResult.Slots)
	out.Answer = bound.Text
	for _, slot := range bound.Sources {
		out.Sources = append(out.Sources, Source{
			ChunkID:    slot.ChunkID,
			SourceFile: slot.SourceFile,
			Page:       slot.Page,
			Snippet:    slot.Snippet,
			Similarity: slot.Similarity,
		})
	}

	u.logger.Info("question_answered",
		slog.Int("retrieved_count", out.Metadata.RetrievedCount),
		slog.Int("used_top_k", out.Metadata.UsedTopK),
		slog.Int("cited_sources", len(out.Sources)),
		slog.Bool("reranked", reranked),
		slog.Int64("llm_latency_ms", out.Usage.LatencyMS),
	)

	if u.cache != nil {
		u.cache.Add(key, *out)
	}
	return out, nil
}

func answerCacheKey(question string, filter domain.ChunkFilter, topK int, rerank bool) string {
	var class string
	if filter.ClassLevel != nil {
		class = fmt.Sprintf("%d", *filter.ClassLevel)
	}
	var subject, chapter string
	if filter.Subject != nil {
		subject = *filter.Subject
	}
	if filter.Chapter != nil {
		chapter = *filter.Chapter
	}
	return fmt.Sprintf("%s|c=%s|s=%s|ch=%s|k=%d|r=%t", question, class, subject, chapter, topK, rerank)
}
