package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foresight/internal/cache"
	"foresight/internal/collector"
	"foresight/internal/config"
	"foresight/internal/db"
	"foresight/internal/domain"
	"foresight/internal/extraction"
	"foresight/internal/handler"
	"foresight/internal/job"
	"foresight/internal/pricing"
	"foresight/internal/provider"
	"foresight/internal/repository"
	"foresight/internal/scheduler"
	"foresight/internal/transcript"
	"foresight/internal/validation"
	"foresight/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	if err := os.MkdirAll(cfg.AudioTempDir, 0o755); err != nil {
		log.Fatalf("create audio temp dir: %v", err)
	}

	// Repositories
	contentRepo := repository.NewContentRepository(db.Pool, tracer)
	channelRepo := repository.NewChannelRepository(db.Pool, tracer)
	predictionRepo := repository.NewPredictionRepository(db.Pool, tracer)
	assetRepo := repository.NewAssetRepository(db.Pool, tracer)
	forecasterRepo := repository.NewForecasterRepository(db.Pool, tracer)
	jobRepo := repository.NewJobRepository(db.Pool, tracer)

	// Market data: CoinGecko first for crypto, Finnhub for everything else
	// and as the crypto fallback.
	var quoteCache pricing.RedisClient
	if cache.Client != nil {
		quoteCache = cache.Client
	}
	priceService := pricing.NewService(tracer, assetRepo, quoteCache)
	priceService.Register(provider.NewCoinGeckoProvider(tracer), domain.AssetTypeCrypto)
	if cfg.FinnhubAPIKey != "" {
		finnhub := provider.NewFinnhubProvider(tracer, cfg.FinnhubAPIKey)
		priceService.Register(finnhub,
			domain.AssetTypeCrypto, domain.AssetTypeStock, domain.AssetTypeETF,
			domain.AssetTypeIndex, domain.AssetTypeCommodity, domain.AssetTypeCurrency)
	} else {
		log.Println("Finnhub disabled: crypto-only price coverage")
	}

	// Transcript acquisition chain
	var transcriptAPI transcript.TranscriptAPISource
	var audioFetcher transcript.AudioFetcher
	if cfg.RapidAPIKey != "" {
		transcriptAPI = provider.NewTranscriptAPIProvider(tracer, cfg.RapidAPIKey)
		audioFetcher = provider.NewAudioConversionProvider(tracer, cfg.RapidAPIKey)
	}
	var asr transcript.Transcriber
	if cfg.OpenAIAPIKey != "" {
		asr = provider.NewWhisperProvider(tracer, cfg.OpenAIAPIKey)
	}
	transcriptSvc := transcript.NewService(
		tracer,
		provider.NewCaptionProvider(tracer),
		transcriptAPI,
		audioFetcher,
		asr,
		contentRepo,
		cfg.AudioTempDir,
	)

	// Extraction engine: OpenAI primary, OpenAI-compatible fallback.
	var primary, fallback extraction.TextGenerator
	if cfg.OpenAIAPIKey != "" {
		primary = extraction.NewGenerator("openai",
			extraction.NewOpenAIClient(cfg.OpenAIAPIKey), cfg.OpenAIModel)
	}
	if cfg.FallbackLLMAPIKey != "" {
		fallback = extraction.NewGenerator("fallback",
			extraction.NewCompatibleClient(cfg.FallbackLLMAPIKey, cfg.FallbackLLMBaseURL),
			cfg.FallbackLLMModel)
	}
	if primary == nil {
		if fallback == nil {
			log.Fatal("no language-model provider configured")
		}
		primary, fallback = fallback, nil
	}
	engine := extraction.NewEngine(
		tracer, primary, fallback,
		predictionRepo, contentRepo, priceService,
		cfg.SingleCallTokenCeiling, cfg.ChunkTokenTarget, cfg.ChunkTokenOverlap,
	)

	collectorSvc := collector.NewService(
		tracer, contentRepo,
		provider.NewYouTubeProvider(tracer),
		provider.NewSocialProvider(tracer),
		transcriptSvc, engine,
		cfg.RecentItemsPerChannel,
		time.Duration(cfg.FreshnessWindowDays)*24*time.Hour,
		time.Duration(cfg.RetentionDays)*24*time.Hour,
	)

	// Periodic jobs
	collectionJob := job.NewCollectionJob(tracer, channelRepo, collectorSvc, jobRepo,
		time.Duration(cfg.CollectionSweepSecs)*time.Second, cfg.ProcessQueueLimit)
	validationSvc := validation.NewService(tracer, predictionRepo, forecasterRepo, priceService)
	validationJob := job.NewValidationJob(tracer, validationSvc, jobRepo,
		time.Duration(cfg.ValidationSecs)*time.Second, 100)
	priceRefreshJob := job.NewPriceRefreshJob(tracer, priceService, jobRepo,
		time.Duration(cfg.PriceRefreshSecs)*time.Second)
	rankingJob := job.NewRankingJob(tracer, forecasterRepo, jobRepo,
		time.Duration(cfg.RankingSecs)*time.Second, 5)
	cleanupJob := job.NewCleanupJob(tracer, collectorSvc, jobRepo, cfg.AudioTempDir,
		time.Duration(cfg.CleanupSecs)*time.Second)

	sched := scheduler.New()
	sched.Register("collection", collectionJob)
	sched.Register("validation", validationJob)
	sched.Register("price-refresh", priceRefreshJob)
	sched.Register("ranking", rankingJob)
	sched.Register("cleanup", cleanupJob)
	go sched.Run(ctx)

	// HTTP surface
	h := handler.New(tracer, jobRepo, collectionJob, priceService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("foresight"))
	r.Use(handler.APIKeyAuth(cfg.APIKey))
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
