// Package api exposes job submission and polling over HTTP for the
// dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/enrich"
	"github.com/sells-group/lead-enrichment/internal/jobs"
	"github.com/sells-group/lead-enrichment/internal/lead"
)

// Runner executes a tracked enrichment job.
type Runner interface {
	RunJob(ctx context.Context, tracker *jobs.Tracker, jobID string, rows []lead.Row) (enrich.Batch, error)
}

// Options configures the server.
type Options struct {
	AllowedOrigins []string
	// MaxBodyBytes caps request bodies. Default: 10 MiB.
	MaxBodyBytes int64
}

// Server serves the HTTP API. Jobs it starts run on a context derived from
// the one passed to New and outlive the request that submitted them.
type Server struct {
	ctx        context.Context
	tracker    *jobs.Tracker
	checkpoint *checkpoint.Store
	runner     Runner
	opts       Options

	wg sync.WaitGroup
}

// New creates a Server.
func New(ctx context.Context, tracker *jobs.Tracker, cp *checkpoint.Store, runner Runner, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{ctx: ctx, tracker: tracker, checkpoint: cp, runner: runner, opts: opts}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/enrich", s.submitEnrich)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Get("/active", s.listActiveJobs)
			r.Get("/{id}", s.getJob)
			r.Post("/{id}/cancel", s.cancelJob)
		})

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.listLeads)
			r.Get("/export", s.exportLeads)
			r.Post("/status", s.leadStatus)
		})
	})
	return r
}

// Wait blocks until every job started by the server has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrTerminal):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func internalError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api: "+op, zap.Error(err))
	writeError(w, statusFor(err), eris.Cause(err).Error())
}
