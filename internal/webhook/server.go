package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/answerline/answerline/internal/config"
)

// Batcher processes one verified, parsed webhook delivery. Processing runs
// after the request has been acknowledged; per-event failures stay inside
// the batcher and never surface to the platform.
type Batcher interface {
	HandleBatch(ctx context.Context, cb *Callback)
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the webhook HTTP server. It authenticates and parses inbound
// deliveries, acknowledges them, and hands the batch to the Batcher in the
// background.
type Server struct {
	cfg     config.ServerConfig
	secret  string
	batcher Batcher
	logger  *slog.Logger
	server  *http.Server

	// wg tracks in-flight batch processing so Shutdown can drain it.
	wg sync.WaitGroup
}

// New creates a new webhook server instance.
func New(cfg config.ServerConfig, channelSecret string, batcher Batcher, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		secret:  channelSecret,
		batcher: batcher,
		logger:  logger,
	}
}

// Start starts the webhook HTTP server (blocking until ctx is cancelled).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.cfg.Listen, "path", s.cfg.CallbackPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Shutdown waits for in-flight batch processing to complete. It returns an
// error if ctx is cancelled before the drain finishes.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setupRoutes configures the HTTP router. Only POST is registered on the
// callback path; chi answers other methods with 405.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(s.cfg.CallbackPath, s.handleCallback)

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleCallback handles one inbound webhook delivery.
//
// Order matters: the signature is verified over the raw bytes before any
// JSON parsing, and the delivery is acknowledged with 200 regardless of
// how individual events fare, so the platform never retries a whole batch
// over one bad event.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	limitedReader := io.LimitReader(r.Body, s.cfg.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}

	if int64(len(body)) > s.cfg.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	signature := r.Header.Get(s.cfg.SignatureHeader)
	if !VerifySignature(body, signature, s.secret) {
		s.logger.Warn("webhook signature verification failed",
			"header", s.cfg.SignatureHeader,
			"signature_present", signature != "",
		)
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cb, err := ParsePayload(body)
	if err != nil {
		s.logger.Warn("webhook payload rejected", "error", err)
		s.respondError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	// Ack first, process in the background. The request context dies with
	// the response, so processing gets its own.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.batcher.HandleBatch(context.Background(), cb)
	}()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
