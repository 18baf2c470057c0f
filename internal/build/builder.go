// Package build orchestrates index builds: discovering documents,
// chunking, embedding, and publishing a new snapshot version.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/HlibHav/support-kb/internal/chunk"
	"github.com/HlibHav/support-kb/internal/config"
	"github.com/HlibHav/support-kb/internal/embed"
	kberrors "github.com/HlibHav/support-kb/internal/errors"
	"github.com/HlibHav/support-kb/internal/snapshot"
	"github.com/HlibHav/support-kb/internal/source"
	"github.com/HlibHav/support-kb/internal/store"
)

// State is the builder's lifecycle phase.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateProcessing  State = "processing"
	StatePublishing  State = "publishing"
	StateFailed      State = "failed"
)

// Progress is a point-in-time view of the running build.
type Progress struct {
	State          State  `json:"state"`
	BuildID        string `json:"build_id,omitempty"`
	DocumentsTotal int    `json:"documents_total"`
	DocumentsDone  int    `json:"documents_done"`
	ChunksIndexed  int    `json:"chunks_indexed"`
}

// Builder runs builds one at a time. A second Build call while one is in
// flight is rejected, and a file lock extends the same guarantee across
// processes sharing the data directory.
type Builder struct {
	cfg       *config.Config
	snapshots *snapshot.Store
	embedder  embed.Embedder
	log       *store.BuildLog
	lock      *flock.Flock

	mu       sync.Mutex
	running  bool
	progress Progress
}

// NewBuilder creates a builder. embedder may be nil to force
// lexical-only builds.
func NewBuilder(cfg *config.Config, snapshots *snapshot.Store, embedder embed.Embedder, log *store.BuildLog) *Builder {
	return &Builder{
		cfg:       cfg,
		snapshots: snapshots,
		embedder:  embedder,
		log:       log,
		lock:      flock.New(filepath.Join(cfg.Paths.DataDir, "build.lock")),
		progress:  Progress{State: StateIdle},
	}
}

// Progress returns the current build progress.
func (b *Builder) Progress() Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

func (b *Builder) setProgress(update func(*Progress)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	update(&b.progress)
}

// Build runs a build of the given type and returns its record. prev is
// the currently served snapshot, nil when none exists; incremental
// builds diff against it and fall back to a full build without it.
//
// Cancelling ctx stops the build at the next batch boundary; the staged
// snapshot is discarded and the published snapshot is untouched.
func (b *Builder) Build(ctx context.Context, buildType string, prev *snapshot.Snapshot) (*store.BuildRecord, error) {
	switch buildType {
	case store.BuildTypeFull, store.BuildTypeIncremental:
	default:
		return nil, kberrors.Newf(kberrors.ErrCodeInvalidMode, "unknown build type %q", buildType)
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil, kberrors.ErrBuildInProgress
	}
	b.running = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		if b.progress.State != StateFailed {
			b.progress = Progress{State: StateIdle}
		}
		b.mu.Unlock()
	}()

	locked, err := b.lock.TryLock()
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeInternal, err)
	}
	if !locked {
		return nil, kberrors.New(kberrors.ErrCodeBuildInProgress,
			"another process holds the build lock", nil).
			WithDetail("lock", b.lock.Path())
	}
	defer func() { _ = b.lock.Unlock() }()

	rec := &store.BuildRecord{
		ID:        uuid.NewString(),
		Type:      buildType,
		Status:    store.BuildStatusRunning,
		StartedAt: time.Now(),
	}
	if err := b.log.Put(rec); err != nil {
		return nil, err
	}

	b.setProgress(func(p *Progress) {
		*p = Progress{State: StateDiscovering, BuildID: rec.ID}
	})
	slog.Info("build started", "build_id", rec.ID, "type", buildType)

	if err := b.run(ctx, rec, prev); err != nil {
		b.finish(rec, err)
		return rec, err
	}

	b.finish(rec, nil)
	return rec, nil
}

// finish stamps the record's terminal status and persists it.
func (b *Builder) finish(rec *store.BuildRecord, err error) {
	now := time.Now()
	rec.FinishedAt = &now

	switch {
	case err == nil:
		rec.Status = store.BuildStatusSucceeded
		slog.Info("build succeeded",
			"build_id", rec.ID,
			"version", rec.SnapshotVersion,
			"documents", rec.Documents,
			"chunks", rec.Chunks)
	case kberrors.CodeOf(err) == kberrors.ErrCodeBuildCancelled || errors.Is(err, context.Canceled):
		rec.Status = store.BuildStatusCancelled
		rec.Error = err.Error()
		slog.Info("build cancelled", "build_id", rec.ID)
	default:
		rec.Status = store.BuildStatusFailed
		rec.Error = err.Error()
		b.setProgress(func(p *Progress) { p.State = StateFailed })
		slog.Error("build failed", "build_id", rec.ID, "error", err)
	}

	if putErr := b.log.Put(rec); putErr != nil {
		slog.Error("failed to persist build record", "build_id", rec.ID, "error", putErr)
	}
}

func (b *Builder) run(ctx context.Context, rec *store.BuildRecord, prev *snapshot.Snapshot) error {
	adapter := source.NewAdapter(b.cfg.Paths.ContentDir)
	docs, problems, err := adapter.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range problems {
		rec.Problems = append(rec.Problems, fmt.Sprintf("%s: %s", p.Path, p.Err))
	}

	b.setProgress(func(p *Progress) {
		p.State = StateProcessing
		p.DocumentsTotal = len(docs)
	})

	hybrid := b.embedder != nil && b.embedder.Available(ctx)
	if !hybrid && b.cfg.Embeddings.Required {
		return kberrors.New(kberrors.ErrCodeEmbeddingUnavailable,
			"embedder unavailable and embeddings.required is set", nil).
			WithSuggestion("start the embedding backend or unset embeddings.required")
	}

	if rec.Type == store.BuildTypeIncremental && prev != nil {
		return b.runIncremental(ctx, rec, docs, prev, hybrid)
	}
	return b.runFull(ctx, rec, docs, hybrid)
}

// writer bundles the index handles of a staged snapshot, counting the
// chunk ids minted and retired while it is open.
type writer struct {
	dir     string
	catalog *store.Catalog
	lexical *store.LexicalIndex
	vector  *store.VectorIndex
	created int
	retired int
}

func (w *writer) close() {
	if w.catalog != nil {
		_ = w.catalog.Close()
	}
	if w.lexical != nil {
		_ = w.lexical.Close()
	}
	if w.vector != nil {
		_ = w.vector.Close()
	}
}

func (b *Builder) runFull(ctx context.Context, rec *store.BuildRecord, docs []*source.Document, hybrid bool) error {
	version, err := b.snapshots.NextVersion()
	if err != nil {
		return err
	}
	dir, err := b.snapshots.Stage(version)
	if err != nil {
		return err
	}

	w := &writer{dir: dir}
	defer func() {
		w.close()
		if rec.Status == store.BuildStatusRunning && rec.SnapshotVersion == 0 {
			b.snapshots.Abort(version)
		}
	}()

	w.catalog, err = store.OpenCatalog(filepath.Join(dir, snapshot.CatalogFileName))
	if err != nil {
		return err
	}
	w.lexical, err = store.NewLexicalIndex(filepath.Join(dir, snapshot.LexicalDirName), b.cfg.Search.Stemming)
	if err != nil {
		return err
	}

	splitter := chunk.NewSplitter(chunk.Options{
		MaxTokens:     b.cfg.Chunking.MaxTokens,
		OverlapTokens: b.cfg.Chunking.OverlapTokens,
		MinTokens:     b.cfg.Chunking.MinTokens,
	})

	for _, doc := range docs {
		if err := b.indexDocument(ctx, w, doc, splitter.Split(doc), hybrid); err != nil {
			return err
		}
	}

	return b.sealAndPublish(rec, w, version, hybrid)
}

func (b *Builder) runIncremental(ctx context.Context, rec *store.BuildRecord, docs []*source.Document, prev *snapshot.Snapshot, hybrid bool) error {
	// The snapshot mode never changes across an incremental build.
	// Patching a hybrid snapshot therefore needs a working embedder;
	// a lexical snapshot stays lexical even if one appeared.
	if prev.Mode == snapshot.ModeHybrid && !hybrid {
		return kberrors.New(kberrors.ErrCodeEmbeddingUnavailable,
			"cannot incrementally update a hybrid snapshot without an embedder", nil).
			WithSuggestion("restore the embedding backend or run a full build")
	}
	patchHybrid := prev.Mode == snapshot.ModeHybrid

	added, changed, deleted := diff(prev, docs)
	if len(added) == 0 && len(changed) == 0 && len(deleted) == 0 {
		rec.SnapshotVersion = prev.Version
		rec.Documents = len(prev.Documents)
		rec.Chunks = len(prev.Chunks)
		slog.Info("incremental build found no changes", "build_id", rec.ID)
		return nil
	}
	slog.Info("incremental diff computed",
		"build_id", rec.ID,
		"added", len(added), "changed", len(changed), "deleted", len(deleted))

	version, err := b.snapshots.NextVersion()
	if err != nil {
		return err
	}
	dir, err := b.snapshots.StageFromPrevious(prev.Version, version)
	if err != nil {
		return err
	}

	w := &writer{dir: dir}
	defer func() {
		w.close()
		if rec.Status == store.BuildStatusRunning && rec.SnapshotVersion == 0 {
			b.snapshots.Abort(version)
		}
	}()

	w.catalog, err = store.OpenCatalog(filepath.Join(dir, snapshot.CatalogFileName))
	if err != nil {
		return err
	}
	w.lexical, err = store.OpenLexicalIndex(filepath.Join(dir, snapshot.LexicalDirName))
	if err != nil {
		return err
	}
	if patchHybrid {
		w.vector, err = store.LoadVectorIndex(filepath.Join(dir, snapshot.VectorFileName))
		if err != nil {
			return err
		}
	}

	for _, docID := range deleted {
		if err := b.removeDocument(ctx, w, docID); err != nil {
			return err
		}
	}
	for _, doc := range changed {
		if err := b.removeDocument(ctx, w, doc.ID); err != nil {
			return err
		}
	}

	splitter := chunk.NewSplitter(chunk.Options{
		MaxTokens:     b.cfg.Chunking.MaxTokens,
		OverlapTokens: b.cfg.Chunking.OverlapTokens,
		MinTokens:     b.cfg.Chunking.MinTokens,
	})
	for _, doc := range append(changed, added...) {
		if err := b.indexDocument(ctx, w, doc, splitter.Split(doc), patchHybrid); err != nil {
			return err
		}
	}

	return b.sealAndPublish(rec, w, version, patchHybrid)
}

// diff splits the discovered documents into added, changed, and deleted
// relative to the previous snapshot. Identity is the path-derived id;
// change is detected by content hash.
func diff(prev *snapshot.Snapshot, docs []*source.Document) (added, changed []*source.Document, deleted []string) {
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		seen[doc.ID] = true
		old, exists := prev.Documents[doc.ID]
		switch {
		case !exists:
			added = append(added, doc)
		case old.ContentHash != doc.ContentHash:
			changed = append(changed, doc)
		}
	}
	for id := range prev.Documents {
		if !seen[id] {
			deleted = append(deleted, id)
		}
	}
	return added, changed, deleted
}

// removeDocument retires a document and all of its chunks from every
// index in the staged snapshot.
func (b *Builder) removeDocument(ctx context.Context, w *writer, docID string) error {
	ids, err := w.catalog.ChunkIDs(docID)
	if err != nil {
		return err
	}
	if err := w.lexical.Remove(ctx, ids); err != nil {
		return err
	}
	if w.vector != nil {
		if err := w.vector.Remove(ctx, ids); err != nil {
			return err
		}
	}
	w.retired += len(ids)
	return w.catalog.DeleteDocument(docID)
}

// indexDocument writes one document's chunks into the staged snapshot.
// Embedding runs in batches; cancellation is honored between batches so
// an abort never leaves a half-embedded document unaccounted for.
func (b *Builder) indexDocument(ctx context.Context, w *writer, doc *source.Document, chunks []*chunk.Chunk, hybrid bool) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	if err := w.catalog.PutDocument(doc, chunks); err != nil {
		return err
	}
	if err := w.lexical.Add(ctx, chunks); err != nil {
		return err
	}
	w.created += len(chunks)

	if hybrid && len(chunks) > 0 {
		batchSize := b.cfg.Embeddings.BatchSize
		for start := 0; start < len(chunks); start += batchSize {
			if err := checkCancelled(ctx); err != nil {
				return err
			}
			end := start + batchSize
			if end > len(chunks) {
				end = len(chunks)
			}
			if err := b.embedBatch(ctx, w, chunks[start:end]); err != nil {
				return err
			}
		}
	}

	b.setProgress(func(p *Progress) {
		p.DocumentsDone++
		p.ChunksIndexed += len(chunks)
	})
	return nil
}

// embedBatch embeds one batch of chunks and inserts the vectors. The
// vector index is created on the first batch, when the embedding
// dimension is definitely known.
func (b *Builder) embedBatch(ctx context.Context, w *writer, batch []*chunk.Chunk) error {
	texts := make([]string, len(batch))
	ids := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	if w.vector == nil {
		w.vector, err = store.NewVectorIndex(store.VectorConfig{Dimensions: len(vecs[0])})
		if err != nil {
			return err
		}
	}
	return w.vector.Add(ctx, ids, vecs)
}

// sealAndPublish writes the manifest, commits the staged directory, and
// flips CURRENT to the new version.
func (b *Builder) sealAndPublish(rec *store.BuildRecord, w *writer, version int, hybrid bool) error {
	docCount, chunkCount, err := w.catalog.Counts()
	if err != nil {
		return err
	}

	// A hybrid build over an empty corpus never created a vector index;
	// the snapshot is served lexical-only.
	mode := snapshot.ModeLexical
	manifest := &snapshot.Manifest{
		Version:   version,
		BuiltAt:   time.Now(),
		Documents: docCount,
		Chunks:    chunkCount,
	}
	if hybrid && w.vector != nil {
		mode = snapshot.ModeHybrid
		manifest.EmbedModel = b.embedder.ModelName()
		manifest.Dimensions = w.vector.Dimensions()
		if err := w.vector.Save(filepath.Join(w.dir, snapshot.VectorFileName)); err != nil {
			return err
		}
	}
	manifest.Mode = mode

	if err := snapshot.WriteManifest(filepath.Join(w.dir, snapshot.ManifestFileName), manifest); err != nil {
		return err
	}

	w.close()
	w.catalog, w.lexical, w.vector = nil, nil, nil

	b.setProgress(func(p *Progress) { p.State = StatePublishing })

	if err := b.snapshots.Commit(version); err != nil {
		return err
	}
	if err := b.snapshots.Publish(version); err != nil {
		return err
	}
	if err := b.snapshots.Prune(b.cfg.Retention.Snapshots); err != nil {
		slog.Warn("snapshot prune failed", "error", err)
	}

	rec.SnapshotVersion = version
	rec.Documents = docCount
	rec.Chunks = chunkCount
	rec.ChunksCreated = w.created
	rec.ChunksRetired = w.retired
	return nil
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return kberrors.Wrap(kberrors.ErrCodeBuildCancelled, err)
	}
	return nil
}
