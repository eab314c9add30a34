// Package http is the JSON API boundary: routing, request decoding, error
// mapping and the middleware chain.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"labstock/internal/cache"
	"labstock/internal/core"
	applog "labstock/internal/log"
	"labstock/internal/middleware/ratelimit"
	"labstock/internal/middleware/security"
	"labstock/internal/middleware/trace"
	"labstock/internal/report"
	"labstock/internal/services"
	"labstock/internal/storage"
)

// Ports the handlers need. The storage repository satisfies all the read
// interfaces; writes go through the purchase service so events fire.
type (
	PurchaseReader interface {
		FindPurchases(ctx context.Context, q report.Query) ([]core.PurchaseRecord, error)
	}

	BudgetStore interface {
		GetBudget(ctx context.Context, orgID, period string) (core.Budget, error)
		UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		ListBudgets(ctx context.Context, orgID string) ([]core.Budget, error)
	}

	PrefStore interface {
		GetWidgetPrefs(ctx context.Context, orgID, userID string) ([]storage.WidgetPref, error)
		PutWidgetPrefs(ctx context.Context, orgID, userID string, prefs []storage.WidgetPref) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

type Config struct {
	Addr               string
	ImportMaxBytes     int64
	RateLimitPerMinute int
	ReportCacheSize    int
	ReportCacheTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:               ":8081",
		ImportMaxBytes:     10 << 20,
		RateLimitPerMinute: 60,
		ReportCacheSize:    256,
		ReportCacheTTL:     5 * time.Minute,
	}
}

type Server struct {
	httpServer *http.Server

	reports   *report.Service
	purchases *services.PurchaseService
	reader    PurchaseReader
	budgets   BudgetStore
	prefs     PrefStore
	pinger    Pinger

	reportCache  *cache.LRUCache[core.AggregationResult]
	cacheManager *cache.Manager
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware

	config       Config
	logger       *applog.Logger
	shutdownOnce sync.Once
}

func NewServer(
	config Config,
	reports *report.Service,
	purchases *services.PurchaseService,
	reader PurchaseReader,
	budgets BudgetStore,
	prefs PrefStore,
	pinger Pinger,
	logger *applog.Logger,
) *Server {
	s := &Server{
		reports:      reports,
		purchases:    purchases,
		reader:       reader,
		budgets:      budgets,
		prefs:        prefs,
		pinger:       pinger,
		reportCache:  cache.NewLRUCache[core.AggregationResult](config.ReportCacheSize, config.ReportCacheTTL),
		cacheManager: cache.NewManager(),
		limiter:      ratelimit.NewLimiter(config.RateLimitPerMinute, time.Minute),
		tracer:       trace.NewMiddleware(clientIP),
		config:       config,
		logger:       logger.WithComponent(applog.ComponentHTTP),
	}

	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(time.Minute)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	handler := s.tracer.Middleware(headers.Middleware(s.rateLimitMutating(s.routes())))

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/reports/purchases", s.handleReportSummary)
	mux.HandleFunc("GET /api/reports/budget-usage", s.handleBudgetUsage)

	mux.HandleFunc("POST /api/purchases", s.handleCreatePurchase)
	mux.HandleFunc("GET /api/purchases", s.handleListPurchases)
	mux.HandleFunc("POST /api/purchases/import", s.handleImport)
	mux.HandleFunc("GET /api/purchases/export", s.handleExport)

	mux.HandleFunc("PUT /api/budgets", s.handleUpsertBudget)
	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)

	mux.HandleFunc("GET /api/prefs/widgets", s.handleGetWidgetPrefs)
	mux.HandleFunc("PUT /api/prefs/widgets", s.handlePutWidgetPrefs)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	return mux
}

// rateLimitMutating applies the per-IP limiter to write methods only; report
// reads stay cheap and cacheable.
func (s *Server) rateLimitMutating(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.config.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the background helpers. Safe
// to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info("server shutting down")
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// invalidateReports drops cached reports for one scope after a write.
func (s *Server) invalidateReports(orgID string) {
	s.reportCache.DeletePrefix(orgID + "|")
}
