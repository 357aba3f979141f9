// Package server provides the HTTP REST API for the apply agent.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/instant-apply/internal/pipeline"
	"github.com/jonathan/instant-apply/internal/server/ratelimit"
	"github.com/jonathan/instant-apply/internal/types"
)

// Searcher runs listing searches. *search.Client implements it.
type Searcher interface {
	Search(ctx context.Context, title, location string) ([]types.Listing, error)
}

// Store is the ledger surface the handlers read and update.
type Store interface {
	GetAttempt(ctx context.Context, attemptID uuid.UUID) (*types.ApplicationAttempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*types.ApplicationAttempt, error)
	ListEvents(ctx context.Context, attemptID uuid.UUID) ([]types.StatusEvent, error)
	UpdateStatus(ctx context.Context, attemptID uuid.UUID, status types.AttemptStatus, cause types.FailureCause) error
}

// Starter creates and retries attempts. *pipeline.Runner implements it.
type Starter interface {
	Start(ctx context.Context, userID uuid.UUID, listing types.Listing) (*types.ApplicationAttempt, error)
	Retry(ctx context.Context, attemptID uuid.UUID) (*types.ApplicationAttempt, error)
}

// Dispatcher schedules created attempts onto the worker pool.
type Dispatcher interface {
	Submit(attempt *types.ApplicationAttempt)
}

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	searcher    Searcher
	store       Store
	starter     Starter
	dispatcher  Dispatcher
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate
}

// Config holds server configuration.
type Config struct {
	Port       int
	Searcher   Searcher
	Store      Store
	Starter    Starter
	Dispatcher Dispatcher

	// RatePerSecond and Burst tune the per-client rate limiter.
	RatePerSecond float64
	Burst         int
}

// New creates a new server instance.
func New(cfg Config) *Server {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	s := &Server{
		searcher:    cfg.Searcher,
		store:       cfg.Store,
		starter:     cfg.Starter,
		dispatcher:  cfg.Dispatcher,
		rateLimiter: ratelimit.New(cfg.RatePerSecond, cfg.Burst),
		validate:    validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /applications", s.handleStartApplication)
	mux.HandleFunc("GET /applications/{id}", s.handleGetApplication)
	mux.HandleFunc("POST /applications/{id}/retry", s.handleRetryApplication)
	mux.HandleFunc("PATCH /applications/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("GET /users/{id}/applications", s.handleListApplications)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routed handler stack, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(s.extractClientID(r)) {
			s.errorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// extractClientID extracts the client identifier from the request,
// the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// jsonResponse writes a JSON response with the given status code.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

var _ Starter = (*pipeline.Runner)(nil)
