// Package gateway is the browser-facing surface: the interview WebSocket
// and the HTTP API for recordings, evaluation and batch transcription.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/config"
	"github.com/lexiqai/interview-assistant/internal/evaluation"
	"github.com/lexiqai/interview-assistant/internal/interview"
	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/resilience"
	"github.com/lexiqai/interview-assistant/internal/stt"
)

// Deps are the collaborators a Server routes to
type Deps struct {
	Config      *config.Config
	Registry    *interview.Registry
	Dialer      stt.Dialer
	Evaluator   *evaluation.Evaluator
	Transcriber *stt.BatchTranscriber
	Logger      zerolog.Logger

	// Breakers are reported on /ready; an open circuit fails readiness
	Breakers []*resilience.CircuitBreaker
}

// Server serves the interview socket and the HTTP API
type Server struct {
	cfg         *config.Config
	registry    *interview.Registry
	dialer      stt.Dialer
	evaluator   *evaluation.Evaluator
	transcriber *stt.BatchTranscriber
	breakers    []*resilience.CircuitBreaker
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// New creates a Server
func New(deps Deps) *Server {
	registry := deps.Registry
	if registry == nil {
		registry = interview.NewRegistry()
	}

	s := &Server{
		cfg:         deps.Config,
		registry:    registry,
		dialer:      deps.Dialer,
		evaluator:   deps.Evaluator,
		transcriber: deps.Transcriber,
		breakers:    deps.Breakers,
		logger:      deps.Logger.With().Str("component", "gateway").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return s
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(s.requestLogger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Recording-Name"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	router.Get("/health", observability.HealthCheckHandler())
	checks := map[string]observability.HealthCheckFunc{
		"deepgram": s.checkDeepgram,
		"gemini":   s.checkGemini,
	}
	for _, cb := range s.breakers {
		checks["circuit_"+cb.Name()] = checkBreaker(cb)
	}
	router.Get("/ready", observability.ReadinessHandler(checks))
	if s.cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Get("/ws/interview", s.handleInterviewWS)

	router.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Post("/evaluate", s.handleEvaluate)
		apiRouter.Post("/transcriptions", s.handleTranscribe)

		apiRouter.Route("/interviews/{interviewID}", func(interviewRouter chi.Router) {
			interviewRouter.Get("/recordings/{speaker}", s.handleRecordingDownload)

			interviewRouter.Route("/library", func(libraryRouter chi.Router) {
				libraryRouter.Get("/", s.handleLibraryList)
				libraryRouter.Post("/", s.handleLibraryUpload)
				libraryRouter.Delete("/", s.handleLibraryClear)
				libraryRouter.Get("/{recordingID}", s.handleLibraryDownload)
				libraryRouter.Post("/{recordingID}/transcription", s.handleLibraryTranscribe)
			})
		})
	})

	return router
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) checkDeepgram(ctx context.Context) (bool, error) {
	if s.cfg.DeepgramAPIKey == "" {
		return false, stt.ErrConfiguration
	}
	return true, nil
}

func (s *Server) checkGemini(ctx context.Context) (bool, error) {
	if s.evaluator == nil || !s.evaluator.Configured() {
		return false, evaluation.ErrConfiguration
	}
	return true, nil
}

func checkBreaker(cb *resilience.CircuitBreaker) observability.HealthCheckFunc {
	return func(ctx context.Context) (bool, error) {
		state, requests, failures, rate := cb.GetStats()
		if state == resilience.StateOpen {
			return false, fmt.Errorf("circuit %s: %d of %d requests failed (%.1f%%)", state, failures, requests, rate)
		}
		return true, nil
	}
}

// requestLogger logs each request through zerolog
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("latency", time.Since(started)).
			Msg("HTTP request")
	})
}
