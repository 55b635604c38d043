// Package api exposes the question answering service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/effective-security/xlog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nviro-labs/pathway/agents/supervisor"
)

var logger = xlog.NewPackageLogger("github.com/nviro-labs/pathway", "api")

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pathway",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests served",
		},
		[]string{"path", "code"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pathway",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"path"},
	)
)

// Runner answers user questions. *supervisor.Supervisor implements it.
type Runner interface {
	Run(ctx context.Context, question string) *supervisor.Result
	RunWithEvents(ctx context.Context, question string, fn supervisor.EventFunc) *supervisor.Result
}

// Server is the HTTP front end over a Runner.
type Server struct {
	runner Runner
	router chi.Router
}

func NewServer(runner Runner) *Server {
	s := &Server{
		runner: runner,
		router: chi.NewRouter(),
	}
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router.Post("/v1/query", s.handleQuery)
	s.router.Post("/v1/query/stream", s.handleQueryStream)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// QueryRequest is the body of POST /v1/query and /v1/query/stream.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse wraps the run outcome for the non-streaming endpoint.
type QueryResponse struct {
	Answer   string             `json:"answer"`
	Complete bool               `json:"complete"`
	Errors   []string           `json:"errors,omitempty"`
	Result   *supervisor.Result `json:"result,omitempty"`
}

// StreamLine is one NDJSON line of the streaming endpoint. Event lines
// arrive while the run progresses, a single result line closes the
// stream.
type StreamLine struct {
	Type   string             `json:"type"`
	Event  *supervisor.Event  `json:"event,omitempty"`
	Result *supervisor.Result `json:"result,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	req, ok := s.decodeQuery(w, r)
	if !ok {
		requestsTotal.WithLabelValues("/v1/query", "400").Inc()
		return
	}

	res := s.runner.Run(r.Context(), req.Question)

	requestsTotal.WithLabelValues("/v1/query", "200").Inc()
	requestDuration.WithLabelValues("/v1/query").Observe(time.Since(started).Seconds())
	logger.ContextKV(r.Context(), xlog.INFO,
		"status", "query_answered",
		"complete", res.Complete,
		"errors", len(res.Errors),
		"elapsed", time.Since(started).String(),
	)

	writeJSON(w, http.StatusOK, &QueryResponse{
		Answer:   res.Answer,
		Complete: res.Complete,
		Errors:   res.Errors,
		Result:   res,
	})
}

func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	req, ok := s.decodeQuery(w, r)
	if !ok {
		requestsTotal.WithLabelValues("/v1/query/stream", "400").Inc()
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		requestsTotal.WithLabelValues("/v1/query/stream", "500").Inc()
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	res := s.runner.RunWithEvents(r.Context(), req.Question, func(ev supervisor.Event) {
		if err := enc.Encode(StreamLine{Type: "event", Event: &ev}); err != nil {
			logger.ContextKV(r.Context(), xlog.WARNING,
				"status", "stream_write_failed",
				"err", err.Error(),
			)
			return
		}
		flusher.Flush()
	})
	_ = enc.Encode(StreamLine{Type: "result", Result: res})
	flusher.Flush()

	requestsTotal.WithLabelValues("/v1/query/stream", "200").Inc()
	requestDuration.WithLabelValues("/v1/query/stream").Observe(time.Since(started).Seconds())
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (*QueryRequest, bool) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "'question' must be a non-empty string")
		return nil, false
	}
	return &req, true
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
