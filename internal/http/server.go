// Package http serves the expense UI (server-rendered HTML driven by
// htmx) and a small JSON API over the view coordinator.
package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"gastos/internal/coordinator"
	"gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
	appweb "gastos/web"
)

// Options tunes presentation and protection. The zero value renders "$"
// amounts and disables rate limiting.
type Options struct {
	CurrencySymbol     string
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	coord     *coordinator.Coordinator
	currency  string
	logger    *log.Logger
	startedAt time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	trace       *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, coord *coordinator.Coordinator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	currency := opts.CurrencySymbol
	if currency == "" {
		currency = "$"
	}

	s := &Server{
		coord:     coord,
		currency:  currency,
		logger:    logger,
		startedAt: time.Now(),
		detector:  security.NewDetector(),
	}
	s.trace = trace.NewMiddleware(logger.WithComponent(log.ComponentTrace), s.detector.ExtractClientIP)

	t, err := appweb.ParseTemplates()
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ui/view", s.handleViewPartial)
	mux.HandleFunc("/api/view", s.handleAPIView)
	mux.HandleFunc("/filter", s.handleFilter)
	mux.HandleFunc("/expenses", s.handleCreateExpense)
	mux.HandleFunc("/expenses/update", s.handleUpdateExpense)
	mux.HandleFunc("/expenses/delete", s.handleDeleteExpense)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	var handler http.Handler = mux
	if opts.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	}
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	msg := "Too many requests. Please try again later."
	if wantsJSON(r) {
		NewHTMXResponse().Status(http.StatusTooManyRequests).BodyJSON(errorBody{Error: msg}).Write(w)
		return
	}
	ErrorResponse(http.StatusTooManyRequests, msg).TriggerErrorNotification(msg).Write(w)
}
