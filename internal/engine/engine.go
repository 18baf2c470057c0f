// Package engine is the façade over the retrieval core: it owns the
// served snapshot, runs builds, and answers queries.
package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/HlibHav/support-kb/internal/build"
	"github.com/HlibHav/support-kb/internal/config"
	"github.com/HlibHav/support-kb/internal/embed"
	kberrors "github.com/HlibHav/support-kb/internal/errors"
	"github.com/HlibHav/support-kb/internal/search"
	"github.com/HlibHav/support-kb/internal/snapshot"
	"github.com/HlibHav/support-kb/internal/store"
)

// DefaultLimit is the result limit applied when a query does not set one.
const DefaultLimit = 10

// Engine wires the retrieval core together. Queries read the active
// snapshot through an atomic pointer, so a publish never blocks them:
// in-flight queries finish on the old version while new ones see the
// new version.
type Engine struct {
	cfg       *config.Config
	snapshots *snapshot.Store
	embedder  embed.Embedder
	builder   *build.Builder
	buildLog  *store.BuildLog

	active atomic.Pointer[snapshot.Snapshot]
}

// SearchOptions controls a query through the façade.
type SearchOptions struct {
	// Limit caps results; zero applies DefaultLimit.
	Limit int

	// Threshold drops results scoring below it, in [0, 1].
	Threshold float64
}

// New creates an engine and loads the current snapshot if one exists.
// A corrupt published snapshot is skipped in favor of the newest loadable
// predecessor, so one bad directory never takes queries down.
func New(cfg *config.Config) (*Engine, error) {
	snapshots, err := snapshot.NewStore(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}

	buildLog, err := store.OpenBuildLog(filepath.Join(cfg.Paths.DataDir, "builds.db"))
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(cfg.Embeddings)
	if err != nil {
		_ = buildLog.Close()
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		snapshots: snapshots,
		embedder:  embedder,
		buildLog:  buildLog,
		builder:   build.NewBuilder(cfg, snapshots, embedder, buildLog),
	}
	e.loadInitial()
	return e, nil
}

// loadInitial loads the newest verifiable snapshot, preferring the
// published one.
func (e *Engine) loadInitial() {
	snap, err := e.snapshots.LoadCurrent()
	if err == nil {
		e.active.Store(snap)
		slog.Info("snapshot loaded", "version", snap.Version, "mode", snap.Mode)
		return
	}
	if kberrors.CodeOf(err) == kberrors.ErrCodeNoSnapshot {
		slog.Info("no snapshot published yet")
		return
	}
	slog.Error("published snapshot failed verification", "error", err)

	versions, versErr := e.snapshots.Versions()
	if versErr != nil {
		return
	}
	current, _ := e.snapshots.CurrentVersion()
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i] >= current {
			continue
		}
		snap, err := e.snapshots.Load(versions[i])
		if err != nil {
			slog.Warn("snapshot failed verification", "version", versions[i], "error", err)
			continue
		}
		e.active.Store(snap)
		slog.Warn("serving older snapshot after corruption", "version", snap.Version)
		return
	}
}

// Search validates the options and runs a hybrid query against the
// active snapshot.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) (*search.ResultSet, error) {
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Limit < 0 || opts.Limit > e.cfg.Search.MaxResults {
		return nil, kberrors.Newf(kberrors.ErrCodeInvalidLimit,
			"limit must be between 1 and %d, got %d", e.cfg.Search.MaxResults, opts.Limit)
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, kberrors.Newf(kberrors.ErrCodeInvalidThreshold,
			"threshold must be between 0 and 1, got %g", opts.Threshold)
	}

	snap := e.active.Load()
	if snap == nil {
		return &search.ResultSet{Results: []*search.Result{}, Reason: search.ReasonNoIndex}, nil
	}
	snap.Acquire()
	defer snap.Release()

	var vector search.VectorSearcher
	if snap.Vector != nil {
		vector = snap.Vector
	}

	eng := search.NewEngine(snap.Lexical, vector, e.embedder, snap.Chunk, search.FusionConfig{
		LexicalWeight: e.cfg.Search.LexicalWeight,
		VectorWeight:  e.cfg.Search.VectorWeight,
		Bonus:         e.cfg.Search.FusionBonus,
	})
	return eng.Search(ctx, query, search.Options{Limit: opts.Limit, Threshold: opts.Threshold})
}

// Build runs a build and, on success, swaps the new snapshot in and
// retires the old one.
func (e *Engine) Build(ctx context.Context, buildType string) (*store.BuildRecord, error) {
	prev := e.active.Load()

	rec, err := e.builder.Build(ctx, buildType, prev)
	if err != nil {
		return rec, err
	}

	if prev != nil && rec.SnapshotVersion == prev.Version {
		return rec, nil // no-op incremental, nothing to swap
	}

	snap, err := e.snapshots.Load(rec.SnapshotVersion)
	if err != nil {
		return rec, err
	}
	e.active.Store(snap)
	if prev != nil {
		prev.Retire()
	}
	return rec, nil
}

// Progress returns the running build's progress.
func (e *Engine) Progress() build.Progress {
	return e.builder.Progress()
}

// BuildRecord returns a build record by id, nil when unknown.
func (e *Engine) BuildRecord(id string) (*store.BuildRecord, error) {
	return e.buildLog.Get(id)
}

// RecentBuilds returns the latest build records, newest first.
func (e *Engine) RecentBuilds(limit int) ([]*store.BuildRecord, error) {
	return e.buildLog.Recent(limit)
}

// Stats returns the active snapshot's statistics, nil when no snapshot
// is served.
func (e *Engine) Stats() *snapshot.Stats {
	snap := e.active.Load()
	if snap == nil {
		return nil
	}
	stats := snap.Stats()
	return &stats
}

// EmbedderAvailable probes the embedding backend.
func (e *Engine) EmbedderAvailable(ctx context.Context) bool {
	return e.embedder != nil && e.embedder.Available(ctx)
}

// Clear deletes every snapshot. The destructive path demands an
// explicit confirmation flag.
func (e *Engine) Clear(confirm bool) error {
	if !confirm {
		return kberrors.ErrConfirmRequired
	}

	if snap := e.active.Swap(nil); snap != nil {
		snap.Retire()
	}
	if err := e.snapshots.Clear(); err != nil {
		return err
	}
	slog.Info("knowledge base cleared")
	return nil
}

// Close retires the active snapshot and releases resources.
func (e *Engine) Close() error {
	if snap := e.active.Swap(nil); snap != nil {
		snap.Retire()
	}
	if e.embedder != nil {
		_ = e.embedder.Close()
	}
	return e.buildLog.Close()
}
