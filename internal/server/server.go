package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/portfolio-core/internal/config"
	"github.com/jonathan/portfolio-core/internal/pdf"
	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/jonathan/portfolio-core/internal/rendering"
	"github.com/jonathan/portfolio-core/internal/server/middleware"
	"github.com/jonathan/portfolio-core/internal/server/ratelimit"
	"github.com/jonathan/portfolio-core/internal/store"
)

// maxBodyBytes caps editor request bodies; imported snapshots carry
// inline images.
const maxBodyBytes = 10 << 20

// DocumentRenderer turns a portfolio document into a PDF.
type DocumentRenderer interface {
	RenderDocument(ctx context.Context, doc portfolio.Document) (*pdf.Document, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       *store.Store
	renderer    DocumentRenderer
	page        rendering.Options
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	authHandler *AuthHandler
	requireAuth func(http.Handler) http.Handler
	validate    *validator.Validate
	verbose     bool
}

// Config holds server configuration
type Config struct {
	Port  int
	Store *store.Store
	// Renderer backs GET /portfolio/resume.pdf; nil answers 503.
	Renderer DocumentRenderer
	// Page configures GET /portfolio/resume.html.
	Page rendering.Options
	// Auth gates the editor routes. Nil leaves them open.
	Auth *config.AuthConfig
	// RateLimit nil loads the limiter settings from the environment.
	RateLimit *ratelimit.Config
	Verbose   bool
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("server requires a store")
	}

	s := &Server{
		store:    cfg.Store,
		renderer: cfg.Renderer,
		page:     cfg.Page,
		validate: validator.New(),
		verbose:  cfg.Verbose,
	}

	rlCfg := cfg.RateLimit
	if rlCfg == nil {
		rlCfg = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rlCfg)

	if cfg.Auth != nil {
		s.jwtService = NewJWTService(cfg.Auth.JWT)
		s.authHandler = NewAuthHandler(cfg.Auth, s.jwtService, s.validate)
		s.requireAuth = middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	} else {
		log.Printf("[AUTH] No admin credentials configured; editor routes are open")
		s.requireAuth = func(next http.Handler) http.Handler { return next }
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // PDF renders drive a headless browser
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	// Reads
	mux.HandleFunc("GET /portfolio", s.handleGetPortfolio)
	mux.HandleFunc("GET /portfolio/sections/{section}", s.handleGetSection)
	mux.HandleFunc("GET /portfolio/export", s.handleExport)
	mux.HandleFunc("GET /portfolio/resume.html", s.handleResumeHTML)
	mux.HandleFunc("GET /portfolio/resume.pdf", s.handleResumePDF)
	mux.HandleFunc("GET /portfolio/events", s.handleEvents)

	// Editor writes
	mux.Handle("PUT /portfolio/sections/{section}", s.editor(s.handleReplaceSection))
	mux.Handle("POST /portfolio/sections/{section}/entities", s.editor(s.handleAddEntity))
	mux.Handle("PUT /portfolio/sections/{section}/entities/{id}", s.editor(s.handleUpdateEntity))
	mux.Handle("DELETE /portfolio/sections/{section}/entities/{id}", s.editor(s.handleRemoveEntity))
	mux.Handle("POST /portfolio/sections/{section}/reorder", s.editor(s.handleReorder))
	mux.Handle("PUT /portfolio/floating-cards", s.editor(s.handleUpdateFloatingCards))
	mux.Handle("PUT /portfolio/profile-picture", s.editor(s.handleUpdatePicture))
	mux.Handle("POST /portfolio/import", s.editor(s.handleImport))
	mux.Handle("POST /portfolio/reset", s.editor(s.handleReset))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

func (s *Server) editor(h http.HandlerFunc) http.Handler {
	return s.requireAuth(h)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging tags each request with an id and logs it
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		log.Printf("[%s] %s %s (%s)", r.Method, r.URL.Path, r.RemoteAddr, reqID)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v (%s)", r.Method, r.URL.Path, time.Since(start), reqID)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if s.store.IsLoading() {
		status = "loading"
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":      status,
		"tier":        s.store.Tier(),
		"lastUpdated": s.store.LastUpdated(),
	})
}

// handleLogin handles editor login requests.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authHandler == nil {
		s.errorResponse(w, http.StatusNotFound, "login is not configured")
		return
	}
	s.authHandler.Login(w, r)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

// storeError maps err to a status and writes it.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[STORE] Request failed: %v", err)
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
// Uses the IP address from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
