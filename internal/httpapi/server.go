// Package httpapi exposes the routing and extraction pipeline over HTTP
// JSON. The surface is small: two POST endpoints that run the pipeline, a
// stats endpoint, a cache-clearing hook, and a health probe.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumenkind/recall/internal/logging"
	"github.com/lumenkind/recall/internal/memory"
	"github.com/lumenkind/recall/internal/observe"
	"github.com/lumenkind/recall/internal/router"
)

const (
	defaultUserID   = "default"
	shutdownTimeout = 5 * time.Second
)

// StatsStore is the slice of the store the stats endpoint reads. A nil
// StatsStore omits the per-category counts from the stats payload.
type StatsStore interface {
	CategoryCounts(ctx context.Context) (map[string]int64, error)
}

type Server struct {
	addr    string
	log     logging.Logger
	router  *router.Router
	memory  *memory.Service
	store   StatsStore
	server  *http.Server
	started time.Time
}

func NewServer(addr string, rt *router.Router, svc *memory.Service, st StatsStore, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop{}
	}
	return &Server{
		addr:    addr,
		log:     log,
		router:  rt,
		memory:  svc,
		store:   st,
		started: time.Now(),
	}
}

// Handler builds the route table. Exposed so tests can drive the handlers
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/route", s.handleRoute)
	mux.HandleFunc("/api/extract", s.handleExtract)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/cleanup", s.handleCleanup)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		s.log.Info("http server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

type pipelineRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

// readPipelineRequest validates the shared route/extract request shape and
// writes the error response itself when the request is unusable.
func readPipelineRequest(w http.ResponseWriter, r *http.Request) (pipelineRequest, bool) {
	var req pipelineRequest
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return req, false
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	return req, true
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := readPipelineRequest(w, r)
	if !ok {
		return
	}
	_, span := observe.StartSpan(r.Context(), "http.route")
	defer span.End()

	decision := s.router.Route(req.Query, req.UserID)
	span.SetAttributes(observe.String("category", decision.PrimaryCategory))
	writeJSON(w, http.StatusOK, decision)
}

type extractResponse struct {
	Decision    router.RoutingDecision `json:"decision"`
	Memories    []memory.RankedMemory  `json:"memories"`
	TotalTokens int                    `json:"total_tokens"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, ok := readPipelineRequest(w, r)
	if !ok {
		return
	}
	ctx, span := observe.StartSpan(r.Context(), "http.extract")
	defer span.End()

	decision := s.router.Route(req.Query, req.UserID)
	memories, total := s.memory.Extract(ctx, req.UserID, req.Query, decision)
	if memories == nil {
		memories = []memory.RankedMemory{}
	}
	span.SetAttributes(
		observe.String("category", decision.PrimaryCategory),
		observe.Int("memories", len(memories)),
	)
	writeJSON(w, http.StatusOK, extractResponse{
		Decision:    decision,
		Memories:    memories,
		TotalTokens: total,
	})
}

type statsResponse struct {
	Routing    router.RoutingSnapshot    `json:"routing"`
	Extraction memory.ExtractionSnapshot `json:"extraction"`
	Categories map[string]int64          `json:"category_counts,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := statsResponse{
		Routing:    s.router.Stats(),
		Extraction: s.memory.Stats(),
	}
	if s.store != nil {
		counts, err := s.store.CategoryCounts(r.Context())
		if err != nil {
			s.log.Warn("category counts failed", "error", err)
		} else {
			resp.Categories = counts
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.router.Cleanup()
	s.log.Info("routing caches cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
