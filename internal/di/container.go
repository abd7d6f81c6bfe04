package di

import (
	"log/slog"
	"time"

	"vedai-backend/internal/adapter/chathttp"
	"vedai-backend/internal/adapter/modelapi"
	"vedai-backend/internal/adapter/repository"
	"vedai-backend/internal/domain"
	"vedai-backend/internal/infra/config"
	"vedai-backend/internal/infra/httpclient"
	"vedai-backend/internal/usecase"
	"vedai-backend/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationComponents holds the wired object graph for the server binary.
type ApplicationComponents struct {
	ContentRepo   domain.ContentRepository
	JobRepo       domain.IngestJobRepository
	AnswerUsecase usecase.AnswerQuestionUsecase
	IngestUsecase usecase.IngestContentUsecase
	Worker        *worker.JobWorker
	Handler       *chathttp.Handler
}

func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) *ApplicationComponents {
	contentRepo := repository.NewContentChunkRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	embedderTimeout := time.Duration(cfg.EmbedderTimeout) * time.Second
	embedder := modelapi.NewHTTPEmbedder(
		cfg.EmbedderURL,
		cfg.EmbedderModel,
		embedderTimeout,
		httpclient.NewPooledClient(embedderTimeout),
	)

	generationTimeout := time.Duration(cfg.GenerationTimeout) * time.Second
	generator := modelapi.NewGeminiGenerator(
		cfg.GeminiURL,
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.Temperature,
		generationTimeout,
		logger,
		httpclient.NewPooledClient(generationTimeout),
	)
	resilientLLM := usecase.NewResilientLLMClient(generator, usecase.GenerationPolicy{
		MaxAttempts:    uint(cfg.GenerationAttempts),
		AttemptTimeout: generationTimeout,
		BackoffBase:    cfg.BackoffBase,
		RPS:            cfg.GenerationRPS,
	}, logger)

	var reranker domain.Reranker
	if cfg.RerankURL != "" {
		rerankTimeout := time.Duration(cfg.RerankTimeout) * time.Second
		reranker = modelapi.NewRerankerClient(
			cfg.RerankURL,
			cfg.RerankModel,
			rerankTimeout,
			logger,
			httpclient.NewPooledClient(rerankTimeout),
		)
		logger.Info("reranker_enabled",
			slog.String("url", cfg.RerankURL),
			slog.String("model", cfg.RerankModel),
		)
	}

	retrieveUsecase := usecase.NewRetrieveChunksUsecase(contentRepo, embedder, cfg.SearchLimit, logger)
	promptBuilder := usecase.NewNumberedPromptBuilder(cfg.PromptCharBudget)

	answerUsecase := usecase.NewAnswerQuestionUsecase(
		retrieveUsecase,
		promptBuilder,
		resilientLLM,
		reranker,
		usecase.AnswerConfig{
			DefaultTopK:    cfg.DefaultTopK,
			MaxTopK:        cfg.MaxTopK,
			MinSimilarity:  float32(cfg.MinSimilarity),
			MaxTokens:      cfg.MaxOutputTokens,
			RerankTimeout:  time.Duration(cfg.RerankTimeout) * time.Second,
			RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
			CacheSize:      cfg.CacheSize,
			CacheTTL:       cfg.CacheTTL,
		},
		logger,
	)

	ingestUsecase := usecase.NewIngestContentUsecase(contentRepo, txManager, embedder, cfg.IngestBatchSize, logger)
	jobWorker := worker.NewJobWorker(jobRepo, ingestUsecase, logger)

	handler := chathttp.NewHandler(answerUsecase, contentRepo, jobRepo, chathttp.HandlerConfig{
		MaxTopK: cfg.MaxTopK,
	}, logger)

	return &ApplicationComponents{
		ContentRepo:   contentRepo,
		JobRepo:       jobRepo,
		AnswerUsecase: answerUsecase,
		IngestUsecase: ingestUsecase,
		Worker:        jobWorker,
		Handler:       handler,
	}
}
