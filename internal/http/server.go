package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"transactions/internal/core"
	"transactions/internal/log"
	"transactions/internal/middleware/ratelimit"
	"transactions/internal/middleware/security"
	"transactions/internal/middleware/trace"
	"transactions/internal/services"
)

// Seeder replaces the dataset; implemented by seed.Loader.
type Seeder interface {
	Seed(ctx context.Context) (core.SeedResult, error)
}

// Options configures the server beyond its dependencies.
type Options struct {
	Logger             *log.Logger
	CORSAllowedOrigins []string
	RateLimitRPM       int
	Pages              PageDefaults
}

type Server struct {
	http.Server
	svc    *services.TransactionService
	seeder Seeder
	pages  PageDefaults

	logger   *log.Logger
	events   *log.StructuredLogger
	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and the middleware chain:
// logger -> trace -> request id -> detection -> security headers -> CORS -> mux.
// Seeding is additionally rate limited per client.
func NewServer(addr string, svc *services.TransactionService, seeder Seeder, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Pages.PerPage <= 0 {
		opts.Pages.PerPage = 10
	}
	if opts.Pages.MaxPerPage <= 0 {
		opts.Pages.MaxPerPage = 100
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()
	s := &Server{
		svc:      svc,
		seeder:   seeder,
		pages:    opts.Pages,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		detector: detector,
		tracer:   trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		started:  time.Now(),
	}

	seedLimit := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Seed rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldRequestID, requestID(r))
		TooManyRequestsError("Rate limit exceeded. Please try again later.").Write(w)
	})

	mux := http.NewServeMux()
	mux.Handle("GET /api/init/seed", seedLimit(http.HandlerFunc(s.handleSeed)))
	mux.Handle("POST /api/init/seed", seedLimit(http.HandlerFunc(s.handleSeed)))
	mux.HandleFunc("GET /api/transactions", s.handleList)
	mux.HandleFunc("GET /api/transactions/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/transactions/barchart", s.handleBarChart)
	mux.HandleFunc("GET /api/transactions/piechart", s.handlePieChart)
	mux.HandleFunc("GET /api/transactions/combined", s.handleCombined)
	mux.HandleFunc("GET /api/transactions/all", s.handleCombined)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{headerTotalCount, trace.HeaderRequestID},
		MaxAge:         600,
	})

	var h http.Handler = mux
	h = c.Handler(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(opts.Logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Seeding waits for the upstream dataset.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.limiter.Stop)
	return s.Server.Shutdown(ctx)
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}
