// Package http serves the HTMX web UI: the entry form, the budget form and
// the dashboard, each request running one independent load cycle.
package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"jizhang/internal/core"
	"jizhang/internal/log"
	"jizhang/internal/services"
	appweb "jizhang/web"
)

// ExpenseService is the part of services.ExpenseService the UI drives.
type ExpenseService interface {
	Dashboard(ctx context.Context) (*services.Dashboard, error)
	Budget(ctx context.Context) (int, bool, error)
	AddEntry(ctx context.Context, e core.Entry) (*services.Dashboard, error)
	SetBudget(ctx context.Context, v int) (*services.Dashboard, error)
}

// Options tune a Server. Zero values select defaults.
type Options struct {
	Logger *log.Logger
	// RequestTimeout bounds each request's cycle against the workbook.
	RequestTimeout  time.Duration
	WritesPerMinute int
	Now             func() time.Time
	// Templates replaces the embedded templates; tests only.
	Templates fs.FS
}

type Server struct {
	http.Server
	templates   *template.Template
	svc         ExpenseService
	logger      *log.Logger
	access      *log.StructuredLogger
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	timeout     time.Duration
	now         func() time.Time
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc ExpenseService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Templates == nil {
		opts.Templates = appweb.TemplatesFS
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           log.RequestMiddleware(logger, ensureRequestID)(mux),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:         svc,
		logger:      logger,
		access:      log.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(opts.WritesPerMinute),
		metrics:     &securityMetrics{},
		timeout:     opts.RequestTimeout,
		now:         opts.Now,
		started:     time.Now(),
	}

	// Parse templates at startup.
	t, err := template.ParseFS(opts.Templates, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/expenses", s.withSecurityHeaders(s.handleCreateEntry))
	mux.HandleFunc("/budget", s.withSecurityHeaders(s.handleSetBudget))
	mux.HandleFunc("/export.xlsx", s.withSecurityHeaders(s.handleExport))
	mux.HandleFunc("/ui/overview", s.withSecurityHeaders(s.handleOverview))

	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		stats := s.metrics.snapshot()
		s.logger.Info("Security counters",
			"rate_limit_hits", stats.RateLimitHits,
			"suspicious_requests", stats.SuspiciousRequests)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// SecurityStats returns the current security counters.
func (s *Server) SecurityStats() SecurityStats {
	return s.metrics.snapshot()
}

// withSecurityHeaders adds security headers, rate limiting, the request
// deadline and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		ctx := r.Context()
		logger := log.FromContext(ctx).With(log.FieldClientIP, clientIP)
		w.Header().Set(requestIDHeader, r.Header.Get(requestIDHeader))

		if detectSuspiciousRequest(r, s.metrics) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			s.access.LogHTTPEnd(ctx, r, http.StatusTooManyRequests, time.Since(start).Milliseconds(), clientIP)
			return
		}

		setSecurityHeaders(w.Header())

		ctx, cancel := context.WithTimeout(log.NewContext(ctx, logger), s.timeout)
		defer cancel()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r.WithContext(ctx))

		s.access.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// render executes a template into a buffer first so a failure can still
// become a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	body, err := s.renderString(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *Server) renderString(name string, data any) (string, error) {
	if s.templates == nil {
		return "", errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
