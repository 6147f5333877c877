package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"transactions/internal/core"
	"transactions/internal/log"
)

const headerTotalCount = "X-Total-Count"

type seedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	res, err := s.seeder.Seed(r.Context())
	if err != nil {
		s.events.LogError(r.Context(), "Seeding failed", err, log.OpSeed, log.NewFields().WithRequestID(requestID(r)))
		InternalServerError("Failed to seed database").Write(w)
		return
	}

	NewJSONResponse().
		Body(seedResponse{Message: "Database seeded successfully", Count: res.Inserted}).
		Write(w)
}

// handleList returns the page as a bare array; the size of the whole match
// set goes in X-Total-Count.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListParams(r.URL.Query(), s.pages)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Invalid list parameters", log.FieldError, err.Error(), log.FieldQuery, r.URL.RawQuery)
		BadRequestError(s.validationMessage(err)).Write(w)
		return
	}

	res, err := s.svc.List(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, log.OpList, err)
		return
	}

	s.logger.DebugContext(r.Context(), "Listed transactions",
		log.NewFields().WithQuery(int(q.Month), q.Search, q.Page.Number, q.Page.Size).WithRequestID(requestID(r)).ToSlice()...)

	NewJSONResponse().
		Header(headerTotalCount, strconv.FormatInt(res.Total, 10)).
		Body(res.Transactions).
		Write(w)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.monthView(w, r, log.OpStatistics, func(ctx context.Context, m core.Month) (any, error) {
		return s.svc.Statistics(ctx, m)
	})
}

func (s *Server) handleBarChart(w http.ResponseWriter, r *http.Request) {
	s.monthView(w, r, log.OpBarChart, func(ctx context.Context, m core.Month) (any, error) {
		return s.svc.BarChart(ctx, m)
	})
}

func (s *Server) handlePieChart(w http.ResponseWriter, r *http.Request) {
	s.monthView(w, r, log.OpPieChart, func(ctx context.Context, m core.Month) (any, error) {
		return s.svc.PieChart(ctx, m)
	})
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	s.monthView(w, r, log.OpCombined, func(ctx context.Context, m core.Month) (any, error) {
		return s.svc.Combined(ctx, m)
	})
}

// monthView parses the month parameter and writes fetch's result.
func (s *Server) monthView(w http.ResponseWriter, r *http.Request, op string, fetch func(context.Context, core.Month) (any, error)) {
	m, err := ParseMonthParam(r.URL.Query())
	if err != nil {
		s.logger.WarnContext(r.Context(), "Invalid month parameter", log.FieldError, err.Error(), log.FieldOperation, op)
		BadRequestError(s.validationMessage(err)).Write(w)
		return
	}

	v, err := fetch(r.Context(), m)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	NewJSONResponse().Body(v).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients()},
	}
	status, code := "ready", http.StatusOK
	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		checks["store"] = "unavailable"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Mean response time", traceMetrics.AverageResponseTime)
	metric("rate_limit_hits_total", "counter", "Seed requests rejected by the rate limiter", limitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}
