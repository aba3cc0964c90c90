// Package web serves the Hebrew form, the progress stream and the JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/harun/tinies/internal/metrics"
	"github.com/harun/tinies/pkg/content"
	"github.com/harun/tinies/pkg/counter"
	"github.com/harun/tinies/pkg/generation"
	"github.com/harun/tinies/pkg/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultCookieName names the session cookie
const DefaultCookieName = "tinies_session"

// Generator runs generation requests
type Generator interface {
	Generate(ctx context.Context, st *session.State, prompt string) (*generation.Outcome, error)
}

// Config wires a Server
type Config struct {
	Host string
	Port int

	Generator Generator
	Sessions  *session.Registry
	Counter   counter.Store
	Content   *content.Loader
	Progress  *ProgressHub
	// RateLimiter is optional; nil disables limiting
	RateLimiter *RateLimiter
	Metrics     *metrics.Metrics

	Examples   []string
	CookieName string
	// CountLocale controls digit grouping of the visit count
	CountLocale language.Tag

	Logger zerolog.Logger
}

// Server is the HTTP surface
type Server struct {
	cfg      Config
	tmpl     *template.Template
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger

	mu      sync.Mutex
	started bool
}

// NewServer validates cfg and parses the page templates
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Generator == nil:
		return nil, fmt.Errorf("generator is required")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("session registry is required")
	case cfg.Counter == nil:
		return nil, fmt.Errorf("counter store is required")
	case cfg.Content == nil:
		return nil, fmt.Errorf("content loader is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CountLocale == language.Und {
		cfg.CountLocale = language.English
	}
	if cfg.Progress == nil {
		cfg.Progress = NewProgressHub(cfg.Metrics, cfg.Logger)
	}

	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		cfg:    cfg,
		tmpl:   tmpl,
		logger: cfg.Logger.With().Str("component", "web").Logger(),
	}, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /example", s.handleExample)
	mux.HandleFunc("POST /generate", s.limited(s.handleGenerate))
	mux.HandleFunc("GET /ws", s.handleProgress)
	mux.HandleFunc("POST /api/generate", s.limited(s.handleAPIGenerate))
	mux.HandleFunc("GET /api/count", s.handleAPICount)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.cfg.Content.Dir()))))
	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	}
	return s.recoverer(mux)
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("server is already running")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.started = true

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting web server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Web server error")
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	s.logger.Info().Msg("Shutting down web server")
	s.cfg.Progress.Close()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Web server stopped")
	return nil
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Handler panic")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimiter == nil {
			next(w, r)
			return
		}

		ip := clientIP(r)
		if !s.cfg.RateLimiter.Allow(ip) {
			retryAfter := s.cfg.RateLimiter.RetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded")
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.RateLimitedTotal.Inc()
			}

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
