// Package api exposes the engine over HTTP for local tooling and help
// desk integrations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/HlibHav/support-kb/internal/engine"
	kberrors "github.com/HlibHav/support-kb/internal/errors"
	"github.com/HlibHav/support-kb/internal/store"
)

// Server serves the HTTP API.
type Server struct {
	engine *engine.Engine
	http   *http.Server
}

// NewServer creates the API server bound to addr.
func NewServer(addr string, eng *engine.Engine) *Server {
	s := &Server{engine: eng}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/build", s.handleBuild)
	mux.HandleFunc("GET /api/builds", s.handleBuilds)
	mux.HandleFunc("GET /api/builds/{id}", s.handleBuildByID)
	mux.HandleFunc("GET /api/build/progress", s.handleProgress)
	mux.HandleFunc("DELETE /api/knowledge-base", s.handleClear)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	slog.Info("api server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"embedder": s.engine.EmbedderAvailable(r.Context()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	if stats == nil {
		writeJSON(w, http.StatusOK, map[string]any{"indexed": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexed": true, "snapshot": stats})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var opts engine.SearchOptions
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, kberrors.Newf(kberrors.ErrCodeInvalidLimit, "limit is not a number: %q", v))
			return
		}
		opts.Limit = limit
	}
	if v := q.Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, kberrors.Newf(kberrors.ErrCodeInvalidThreshold, "threshold is not a number: %q", v))
			return
		}
		opts.Threshold = threshold
	}

	set, err := s.engine.Search(r.Context(), q.Get("q"), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type buildRequest struct {
	Type string `json:"type"`
}

// handleBuild starts a build asynchronously and returns its id; progress
// and outcome are polled via the builds endpoints.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Type == "" {
		req.Type = store.BuildTypeIncremental
	}
	if req.Type != store.BuildTypeFull && req.Type != store.BuildTypeIncremental {
		writeError(w, kberrors.Newf(kberrors.ErrCodeInvalidMode, "unknown build type %q", req.Type))
		return
	}

	done := make(chan *store.BuildRecord, 1)
	errCh := make(chan error, 1)
	go func() {
		rec, err := s.engine.Build(context.Background(), req.Type)
		if rec != nil {
			done <- rec
		}
		errCh <- err
	}()

	// Wait briefly so immediate rejections (another build running) map
	// to a proper status instead of a phantom accepted build.
	select {
	case err := <-errCh:
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, <-done)
	case <-time.After(100 * time.Millisecond):
		writeJSON(w, http.StatusAccepted, map[string]any{"state": "running"})
	}
}

func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.engine.RecentBuilds(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*store.BuildRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleBuildByID(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.BuildRecord(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "build not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Progress())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	confirm := r.URL.Query().Get("confirm") == "true"
	if err := s.engine.Clear(confirm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps coded errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var coded *kberrors.Error
	if errors.As(err, &coded) {
		switch coded.Category {
		case kberrors.CategoryValidation:
			status = http.StatusBadRequest
		case kberrors.CategoryModel:
			status = http.StatusServiceUnavailable
		default:
			if coded.Code == kberrors.ErrCodeBuildInProgress {
				status = http.StatusConflict
			}
		}
	}

	body := map[string]any{"error": err.Error()}
	if coded != nil {
		body["code"] = coded.Code
		if coded.Suggestion != "" {
			body["suggestion"] = coded.Suggestion
		}
	}
	writeJSON(w, status, body)
}
