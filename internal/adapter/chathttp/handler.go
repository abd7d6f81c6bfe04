package chathttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vedai-backend/internal/domain"
	"vedai-backend/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxQuestionLength = 500

type HandlerConfig struct {
	MaxTopK int
}

type Handler struct {
	answerUsecase usecase.AnswerQuestionUsecase
	contentRepo   domain.ContentRepository
	jobRepo       domain.IngestJobRepository
	cfg           HandlerConfig
	logger        *slog.Logger
}

func NewHandler(
	answerUsecase usecase.AnswerQuestionUsecase,
	contentRepo domain.ContentRepository,
	jobRepo domain.IngestJobRepository,
	cfg HandlerConfig,
	logger *slog.Logger,
) *Handler {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 50
	}
	return &Handler{
		answerUsecase: answerUsecase,
		contentRepo:   contentRepo,
		jobRepo:       jobRepo,
		cfg:           cfg,
		logger:        logger,
	}
}

type AskRequest struct {
	Question string  `json:"question"`
	Class    *int    `json:"class"`
	Subject  *string `json:"subject"`
	Chapter  *string `json:"chapter"`
	TopK     *int    `json:"top_k"`
	ReRank   bool    `json:"re_rank"`
}

type SourceResponse struct {
	ChunkID    string  `json:"chunk_id"`
	SourceFile string  `json:"source_file"`
	Page       int     `json:"page"`
	Snippet    string  `json:"snippet"`
	Similarity float32 `json:"similarity_score"`
}

type AskMetadata struct {
	RetrievedCount int  `json:"retrieved_count"`
	UsedTopK       int  `json:"used_top_k"`
	ReRanked       bool `json:"re_ranked"`
}

type AskLLMUsage struct {
	LatencyMS    int64 `json:"latency_ms"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
}

type AskResponse struct {
	Answer   string           `json:"answer"`
	Sources  []SourceResponse `json:"sources"`
	Metadata AskMetadata      `json:"metadata"`
	LLMUsage AskLLMUsage      `json:"llm_usage"`
	Error    *string          `json:"error"`
}

// AskQuestion handles POST /chat/ask. Degraded pipelines (nothing retrieved,
// generation down) still answer 200 with the fallback text and, when an
// upstream actually failed, an error detail; only invalid input gets a 4xx.
func (h *Handler) AskQuestion(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	if len([]rune(question)) > maxQuestionLength {
		return echo.NewHTTPError(http.StatusBadRequest, "question exceeds 500 characters")
	}
	if req.Class != nil && (*req.Class < 8 || *req.Class > 12) {
		return echo.NewHTTPError(http.StatusBadRequest, "class must be between 8 and 12")
	}
	topK := 0
	if req.TopK != nil {
		if *req.TopK < 1 || *req.TopK > h.cfg.MaxTopK {
			return echo.NewHTTPError(http.StatusBadRequest,
				"top_k must be between 1 and "+strconv.Itoa(h.cfg.MaxTopK))
		}
		topK = *req.TopK
	}

	input := usecase.AnswerQuestionInput{
		Question: question,
		Filter: domain.ChunkFilter{
			ClassLevel: req.Class,
			Subject:    normalizeFilter(req.Subject),
			Chapter:    normalizeFilter(req.Chapter),
		},
		TopK:   topK,
		Rerank: req.ReRank,
	}

	out, err := h.answerUsecase.Execute(c.Request().Context(), input)
	if err != nil {
		h.logger.Error("answer_pipeline_failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "answering is temporarily unavailable")
	}

	resp := AskResponse{
		Answer:  out.Answer,
		Sources: make([]SourceResponse, 0, len(out.Sources)),
		Metadata: AskMetadata{
			RetrievedCount: out.Metadata.RetrievedCount,
			UsedTopK:       out.Metadata.UsedTopK,
			ReRanked:       out.Metadata.Reranked,
		},
		LLMUsage: AskLLMUsage{
			LatencyMS:    out.Usage.LatencyMS,
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		},
	}
	for _, s := range out.Sources {
		resp.Sources = append(resp.Sources, SourceResponse{
			ChunkID:    s.ChunkID.String(),
			SourceFile: s.SourceFile,
			Page:       s.Page,
			Snippet:    s.Snippet,
			Similarity: s.Similarity,
		})
	}
	if out.ErrorDetail != "" {
		detail := out.ErrorDetail
		resp.Error = &detail
	}

	return c.JSON(http.StatusOK, resp)
}

type IngestRequest struct {
	SourceFile string               `json:"source_file"`
	Class      int                  `json:"class"`
	Subject    string               `json:"subject"`
	Chapter    string               `json:"chapter"`
	Chunks     []IngestChunkRequest `json:"chunks"`
}

type IngestChunkRequest struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Tokens int    `json:"tokens"`
}

type IngestAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// IngestContent handles POST /internal/content/ingest. The payload is queued
// as a job and embedded asynchronously by the worker.
func (h *Handler) IngestContent(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.SourceFile) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_file is required")
	}
	if len(req.Chunks) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one chunk is required")
	}
	if req.Class != 0 && (req.Class < 8 || req.Class > 12) {
		return echo.NewHTTPError(http.StatusBadRequest, "class must be between 8 and 12")
	}
	for i, chunk := range req.Chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			return echo.NewHTTPError(http.StatusBadRequest,
				"chunk "+strconv.Itoa(i)+" has empty text")
		}
	}

	chunks := make([]map[string]interface{}, len(req.Chunks))
	for i, chunk := range req.Chunks {
		chunks[i] = map[string]interface{}{
			"text":   chunk.Text,
			"page":   chunk.Page,
			"tokens": chunk.Tokens,
		}
	}
	payload := map[string]interface{}{
		"source_file": req.SourceFile,
		"class":       req.Class,
		"subject":     req.Subject,
		"chapter":     req.Chapter,
		"chunks":      chunks,
	}

	now := time.Now()
	job := &domain.IngestJob{
		ID:        uuid.New(),
		JobType:   domain.JobTypeIngestChunks,
		Payload:   payload,
		Status:    domain.JobStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.jobRepo.Enqueue(c.Request().Context(), job); err != nil {
		h.logger.Error("ingest_enqueue_failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to queue ingest job")
	}

	h.logger.Info("ingest_job_queued",
		slog.String("job_id", job.ID.String()),
		slog.String("source_file", req.SourceFile),
		slog.Int("chunk_count", len(req.Chunks)),
	)
	return c.JSON(http.StatusAccepted, IngestAcceptedResponse{
		JobID:  job.ID.String(),
		Status: "queued",
	})
}

type ContentStatsResponse struct {
	TotalChunksAvailable int64 `json:"total_chunks_available"`
}

// ContentStats handles GET /internal/content/stats with optional
// class/subject/chapter query filters.
func (h *Handler) ContentStats(c echo.Context) error {
	var filter domain.ChunkFilter
	if raw := c.QueryParam("class"); raw != "" {
		class, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "class must be an integer")
		}
		filter.ClassLevel = &class
	}
	if raw := c.QueryParam("subject"); raw != "" {
		filter.Subject = &raw
	}
	if raw := c.QueryParam("chapter"); raw != "" {
		filter.Chapter = &raw
	}

	count, err := h.contentRepo.CountMatching(c.Request().Context(), filter)
	if err != nil {
		h.logger.Error("content_stats_failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to count content chunks")
	}
	return c.JSON(http.StatusOK, ContentStatsResponse{TotalChunksAvailable: count})
}

func normalizeFilter(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
