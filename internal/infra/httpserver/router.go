package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appscan "github.com/crateguard/crateguard/internal/application/scan"
	domai "github.com/crateguard/crateguard/internal/domain/ai"
	"github.com/crateguard/crateguard/internal/domain/analysis"
	"github.com/crateguard/crateguard/internal/infra/manifest"
	"github.com/crateguard/crateguard/internal/middleware"
)

type Router struct {
	scanSvc *appscan.Service
	cache   analysis.Cache
	log     *slog.Logger

	mu     sync.RWMutex
	latest *appscan.Report
	status string
}

func NewRouter(scanSvc *appscan.Service, cache analysis.Cache, limiter *middleware.RateLimiter, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{scanSvc: scanSvc, cache: cache, log: log, status: "idle"}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Use(middleware.Logging(log))
	if limiter != nil {
		mux.Use(middleware.RateLimit(limiter))
	}

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"cache": &middleware.CacheHealthChecker{Cache: cache},
	}))

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/scan", r.wrap(r.handleTriggerScan))
		rt.Get("/results/latest", r.wrap(r.handleLatest))
		rt.Get("/cache/stats", r.wrap(r.handleCacheStats))
		rt.Post("/cache/cleanup", r.wrap(r.handleCacheCleanup))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, domai.ErrQuotaExceeded) {
				http.Error(w, "analysis quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/scan
// Body: {"path": "<project dir>", "deep_all": false, "no_cache": false,
// "include_sources": false}
// The scan runs in the background; poll /v1/results/latest for the report.
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Path           string `json:"path"`
		DeepAll        bool   `json:"deep_all"`
		NoCache        bool   `json:"no_cache"`
		IncludeSources bool   `json:"include_sources"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if body.Path == "" {
		return fmt.Errorf("path is required")
	}

	units, err := manifest.Units(body.Path)
	if err != nil {
		return err
	}
	if body.IncludeSources {
		sources, err := manifest.SourceUnits(body.Path)
		if err != nil {
			return err
		}
		units = append(units, sources...)
	}

	// The request context dies with the handler; the scan keeps its own.
	r.setStatus("running")
	go func() {
		report, err := r.scanSvc.Run(context.Background(), units, appscan.Options{
			DeepAll: body.DeepAll,
			NoCache: body.NoCache,
		})
		if err != nil {
			r.log.Error("background scan failed", "path", body.Path, "err", err)
			r.setStatus("failed")
			return
		}
		r.mu.Lock()
		r.latest = report
		r.status = "done"
		r.mu.Unlock()
		r.log.Info("background scan finished",
			"path", body.Path, "session", report.SessionID)
	}()

	resp := map[string]any{
		"status":   "queued",
		"path":     body.Path,
		"units":    len(units),
		"message":  "scan started in background",
		"queuedAt": time.Now(),
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/results/latest
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	r.mu.RLock()
	report, status := r.latest, r.status
	r.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if report == nil {
		return json.NewEncoder(w).Encode(map[string]any{"status": status})
	}
	return json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"report": report,
	})
}

// GET /v1/cache/stats?top=10
func (r *Router) handleCacheStats(w http.ResponseWriter, req *http.Request) error {
	stats, err := r.cache.Stats(req.Context())
	if err != nil {
		return err
	}
	top, _ := strconv.Atoi(req.URL.Query().Get("top"))
	if top <= 0 {
		top = 10
	}
	packages, err := r.cache.TopPackages(req.Context(), top)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"stats":        stats,
		"top_packages": packages,
	})
}

// POST /v1/cache/cleanup?days=90
func (r *Router) handleCacheCleanup(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	if days <= 0 {
		days = 90
	}
	removed, err := r.cache.Cleanup(req.Context(), days)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"removed":      removed,
		"max_age_days": days,
	})
}

func (r *Router) setStatus(s string) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}
