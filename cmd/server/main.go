package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/interview-assistant/internal/config"
	"github.com/lexiqai/interview-assistant/internal/evaluation"
	"github.com/lexiqai/interview-assistant/internal/gateway"
	"github.com/lexiqai/interview-assistant/internal/interview"
	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/resilience"
	"github.com/lexiqai/interview-assistant/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("deepgram_configured", cfg.DeepgramAPIKey != "").
		Bool("gemini_configured", cfg.GeminiAPIKey != "").
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interview Assistant starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resetTimeout := time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second
	retry := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}

	// A missing key leaves the evaluator unconfigured; calls then report it
	var generator evaluation.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := evaluation.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		generator = gemini
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, evaluation disabled")
	}
	if cfg.DeepgramAPIKey == "" {
		logger.Warn().Msg("DEEPGRAM_API_KEY not set, transcription disabled")
	}

	geminiBreaker := resilience.NewCircuitBreaker("gemini", cfg.CircuitBreakerMaxFailures, resetTimeout).Observe(observeBreaker)
	batchBreaker := resilience.NewCircuitBreaker("deepgram_batch", cfg.CircuitBreakerMaxFailures, resetTimeout).Observe(observeBreaker)

	evaluator := evaluation.NewEvaluator(generator, geminiBreaker, logger)

	transcriber := stt.NewBatchTranscriber(stt.BatchConfig{
		URL:            cfg.DeepgramBatchURL,
		APIKey:         cfg.DeepgramAPIKey,
		Model:          cfg.DeepgramModel,
		Language:       cfg.DeepgramLanguage,
		MinDuration:    cfg.MinBatchDuration(),
		BytesPerSecond: cfg.BatchBytesPerSecond,
		Timeout:        time.Duration(cfg.RequestTimeout) * time.Second,
		Retry:          retry,
		Breaker:        batchBreaker,
		Logger:         logger,
	})

	gw := gateway.New(gateway.Deps{
		Config:      cfg,
		Registry:    interview.NewRegistry(),
		Dialer:      stt.NewDeepgramDialer(cfg.DeepgramLiveURL),
		Evaluator:   evaluator,
		Transcriber: transcriber,
		Logger:      logger,
		Breakers:    []*resilience.CircuitBreaker{batchBreaker, geminiBreaker},
	})

	// Create HTTP server with timeouts; uploads may wait on batch transcription
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      gw.Handler(),
		ReadTimeout:  time.Duration(cfg.RequestTimeout) * time.Second,
		WriteTimeout: 2 * time.Duration(cfg.RequestTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/interview", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error")
	}

	logger.Info().Msg("Server exited gracefully")
}

func observeBreaker(name string, state resilience.CircuitState, success bool) {
	observability.UpdateCircuitBreakerState(name, int(state))
	if !success {
		observability.IncrementCircuitBreakerFailures(name)
	}
}
