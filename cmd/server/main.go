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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wgunawan/hiradc/internal"
	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/ai/gemini"
	"github.com/wgunawan/hiradc/internal/ai/mock"
	"github.com/wgunawan/hiradc/internal/handler"
	"github.com/wgunawan/hiradc/internal/metrics"
	"github.com/wgunawan/hiradc/internal/middleware"
	"github.com/wgunawan/hiradc/internal/service"
	"github.com/wgunawan/hiradc/internal/storage"
	"github.com/wgunawan/hiradc/internal/store"
)

const version = "0.1.0"

func run() error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize report store
	reports, err := store.NewFileStore(cfg.StorePath, logger)
	if err != nil {
		return fmt.Errorf("report store initialization failed: %w", err)
	}

	// Initialize artifact storage
	var artifacts storage.Storage
	if cfg.ArtifactsEnabled {
		switch cfg.StorageProvider {
		case storage.ProviderR2:
			artifacts, err = storage.NewR2Storage(storage.R2Config{
				AccountID:       cfg.R2AccountID,
				AccessKeyID:     cfg.R2AccessKeyID,
				SecretAccessKey: cfg.R2SecretAccessKey,
				BucketName:      cfg.R2BucketName,
				PublicURL:       cfg.R2PublicURL,
			}, logger)
		default:
			artifacts, err = storage.NewLocalStorage(storage.LocalConfig{
				BasePath: cfg.LocalStoragePath,
				BaseURL:  cfg.LocalStorageURL,
			}, logger)
		}
		if err != nil {
			return fmt.Errorf("artifact storage initialization failed: %w", err)
		}
	}

	// Initialize AI provider
	var provider ai.Provider
	switch cfg.AIProvider {
	case "gemini":
		provider, err = gemini.New(gemini.Config{
			APIKey:        cfg.GeminiAPIKey,
			AnalysisModel: cfg.GeminiModel,
			QueryModel:    cfg.GeminiQueryModel,
			ImageModel:    cfg.GeminiImageModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("AI provider initialization failed: %w", err)
		}
	default:
		provider = mock.New(logger)
		logger.Warn("using mock AI provider; set AI_PROVIDER=gemini for real analysis")
	}

	// Initialize services
	reportService := service.NewReportService(reports, provider, artifacts, service.NewImagingProcessor(), logger)

	// Initialize middleware
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	aiLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, logger)
	aiLimitMw := middleware.NewRateLimitMiddleware(aiLimiter, logger)

	// Initialize handlers
	reportHandler := handler.NewReportHandler(reportService, logger)
	healthHandler := handler.NewHealthHandler(version)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Report API. The AI-backed routes sit behind the rate limiter.
	mux.Handle("POST /api/reports", aiLimitMw.Limit(http.HandlerFunc(reportHandler.Compose)))
	mux.HandleFunc("GET /api/reports", reportHandler.List)
	mux.HandleFunc("GET /api/reports/{id}", reportHandler.Get)
	mux.Handle("POST /api/reports/{id}/queries", aiLimitMw.Limit(http.HandlerFunc(reportHandler.Query)))
	mux.Handle("POST /api/reports/{id}/image-edits", aiLimitMw.Limit(http.HandlerFunc(reportHandler.EditImage)))

	// Serve locally archived artifacts in development
	if _, ok := artifacts.(*storage.LocalStorage); ok {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Unmatched routes get a JSON 404 instead of the default text response.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	root := loggingMw.Handler(metrics.Middleware(mux))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "ai_provider", cfg.AIProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
