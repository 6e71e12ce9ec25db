// Package api exposes zone analysis over HTTP for the mapping dashboard.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/conversion-cli/internal/analysis"
	"github.com/sells-group/conversion-cli/internal/config"
	"github.com/sells-group/conversion-cli/internal/store"
	"github.com/sells-group/conversion-cli/internal/zone"
)

// Server wires the analyzer and run store into an HTTP handler.
type Server struct {
	analyzer *analysis.Analyzer
	zones    *zone.Registry
	runs     store.Store
	cfg      config.ServerConfig
}

// New creates a Server. runs may be nil; the run endpoints then return
// 503 instead of panicking.
func New(analyzer *analysis.Analyzer, zones *zone.Registry, runs store.Store, cfg config.ServerConfig) *Server {
	return &Server{analyzer: analyzer, zones: zones, runs: runs, cfg: cfg}
}

// Router builds the route tree with CORS and rate limiting applied
// globally.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	perSecond := s.cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	burst := s.cfg.RateBurst
	if burst <= 0 {
		burst = int(perSecond) * 2
	}
	r.Use(rateLimit(rate.NewLimiter(rate.Limit(perSecond), burst)))

	r.Get("/health", s.handleHealth)
	r.Get("/zones", s.handleZones)
	r.Get("/zones/{id}/analysis", s.handleZoneAnalysis)
	r.Get("/runs", s.handleRuns)
	r.Get("/runs/{id}", s.handleRun)

	return r
}

// rateLimit sheds load once the shared limiter is exhausted. The dashboard
// polls zone analyses on a timer, so a single process-wide limiter is
// enough.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.zones.All())
}

func (s *Server) handleZoneAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.analyzer.AnalyzeZone(id)
	if err != nil {
		if eris.Is(err, zone.ErrNotFound) {
			respondError(w, http.StatusNotFound, "unknown zone: "+id)
			return
		}
		zap.L().Error("api: zone analysis failed", zap.String("zone", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}

	filter := store.RunFilter{
		Status: store.RunStatus(r.URL.Query().Get("status")),
		Zone:   r.URL.Query().Get("zone"),
		Limit:  50,
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}

	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found: "+id)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
