// Package http exposes the ledger, exports and AI assistance as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pocketbalance/internal/assist"
	"pocketbalance/internal/log"
	"pocketbalance/internal/middleware/ratelimit"
	"pocketbalance/internal/middleware/security"
	"pocketbalance/internal/services"
)

const (
	maxJSONBody    = 1 << 20  // 1 MiB
	maxReceiptBody = 10 << 20 // 10 MiB, base64 photos
)

type Server struct {
	http.Server
	ledger  *services.LedgerService
	assist  *assist.Service
	limiter *ratelimit.Limiter
	logger  *log.Logger

	stopCleanup  context.CancelFunc
	shutdownOnce sync.Once
}

// Options tunes the server. Zero values pick defaults.
type Options struct {
	Logger *log.Logger
	// AIRatePerMinute bounds AI calls per client IP.
	AIRatePerMinute int
}

// NewServer builds the router. ai may be nil, in which case AI endpoints
// answer with the generic failure.
func NewServer(addr string, ledger *services.LedgerService, ai *assist.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if ai == nil {
		ai = assist.NewService(nil, nil)
	}

	s := &Server{
		ledger:  ledger,
		assist:  ai,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.AIRatePerMinute}),
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(security.NoStore)

		r.Get("/categories", s.handleCategories)
		r.Get("/summary", s.handleSummary)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Delete("/transactions", s.handleClearTransactions)

		r.Get("/export.csv", s.handleExportCSV)
		r.Get("/export.xlsx", s.handleExportXLSX)

		r.Route("/ai", func(r chi.Router) {
			r.Use(s.limiter.Middleware(security.ClientIP, s.rateLimited))
			r.Post("/suggest-category", s.handleSuggestCategory)
			r.Post("/scan-receipt", s.handleScanReceipt)
		})
	})

	cleanupCtx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	go s.limiter.Run(cleanupCtx, 5*time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// scans may wait on the model
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Shutdown stops background work and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopCleanup()
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, security.ClientIP(r),
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.Store().IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
