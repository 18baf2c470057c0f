package search

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/HlibHav/support-kb/internal/chunk"
	"github.com/HlibHav/support-kb/internal/embed"
	"github.com/HlibHav/support-kb/internal/store"
)

// candidateFactor over-fetches each leg relative to the requested limit
// so fusion has a candidate pool to re-rank.
const candidateFactor = 3

// LexicalSearcher is the keyword leg of hybrid search.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]*store.LexicalResult, error)
}

// VectorSearcher is the semantic leg of hybrid search.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error)
}

// ChunkResolver maps a chunk id to its chunk. Returning nil drops the
// hit; the indexes may briefly know ids the catalog no longer has.
type ChunkResolver func(id string) *chunk.Chunk

// Engine runs hybrid queries against one snapshot's indexes.
type Engine struct {
	lexical  LexicalSearcher
	vector   VectorSearcher
	embedder embed.Embedder
	resolve  ChunkResolver
	fusion   FusionConfig
}

// NewEngine creates a search engine. vector and embedder may be nil for
// lexical-only snapshots; queries then run degraded.
func NewEngine(lexical LexicalSearcher, vector VectorSearcher, embedder embed.Embedder,
	resolve ChunkResolver, fusion FusionConfig) *Engine {
	return &Engine{
		lexical:  lexical,
		vector:   vector,
		embedder: embedder,
		resolve:  resolve,
		fusion:   fusion,
	}
}

// Search runs both legs concurrently and fuses the hits. The vector leg
// is skipped, and the response marked degraded, when no embedder or
// vector index is available.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*ResultSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &ResultSet{Results: []*Result{}, Reason: ReasonEmptyQuery}, nil
	}

	fetch := opts.Limit * candidateFactor

	var (
		lexHits  []*store.LexicalResult
		vecHits  []*store.VectorResult
		degraded bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		lexHits, err = e.lexical.Search(gctx, query, fetch)
		return err
	})

	if e.vector == nil || e.embedder == nil {
		degraded = true
	} else {
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, query)
			if err != nil {
				slog.Warn("query embedding failed, degrading to lexical-only",
					"error", err)
				degraded = true
				return nil
			}
			vecHits, err = e.vector.Search(gctx, vec, fetch)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	hadCandidates := len(lexHits) > 0 || len(vecHits) > 0
	results := e.rank(lexHits, vecHits, opts)

	set := &ResultSet{Results: results, Degraded: degraded}
	if len(results) == 0 {
		if hadCandidates {
			set.Reason = ReasonBelowThreshold
		} else {
			set.Reason = ReasonNoMatch
		}
	}
	return set, nil
}

// rank fuses the two legs, resolves chunks, and applies threshold and
// limit.
func (e *Engine) rank(lexHits []*store.LexicalResult, vecHits []*store.VectorResult, opts Options) []*Result {
	results := make([]*Result, 0, opts.Limit)
	for _, f := range Fuse(lexHits, vecHits, e.fusion) {
		if opts.Threshold > 0 && f.combined < opts.Threshold {
			continue
		}

		c := e.resolve(f.id)
		if c == nil {
			slog.Debug("dropping hit with no catalog chunk", "chunk_id", f.id)
			continue
		}

		results = append(results, &Result{
			Chunk:        c,
			Score:        f.combined,
			LexScore:     f.lexScore,
			VecScore:     f.vecScore,
			Source:       f.source,
			PhraseMatch:  f.phrase,
			MatchedTerms: f.terms,
		})
		if len(results) == opts.Limit {
			break
		}
	}
	return results
}
