// Package snapshot manages immutable index versions. A snapshot is a
// directory holding a chunk catalog, a lexical index, and optionally a
// vector index, published atomically via a CURRENT pointer file.
package snapshot

import (
	"sync"
	"time"

	"github.com/HlibHav/support-kb/internal/chunk"
	"github.com/HlibHav/support-kb/internal/source"
	"github.com/HlibHav/support-kb/internal/store"
)

// Mode describes what a snapshot can serve.
type Mode string

const (
	// ModeHybrid snapshots carry both lexical and vector indexes.
	ModeHybrid Mode = "hybrid"

	// ModeLexical snapshots were built without an embedder and serve
	// keyword search only.
	ModeLexical Mode = "lexical"
)

// Snapshot is a loaded, servable index version. Snapshots are immutable
// once published: queries only read, builds produce a new version.
type Snapshot struct {
	Version    int
	BuiltAt    time.Time
	Mode       Mode
	EmbedModel string
	Dimensions int

	// Documents and Chunks mirror the catalog, loaded once so queries
	// never touch sqlite.
	Documents map[string]*source.Document
	Chunks    map[string]*chunk.Chunk

	Lexical *store.LexicalIndex
	Vector  *store.VectorIndex // nil in lexical mode

	mu      sync.Mutex
	refs    int
	retired bool
}

// Acquire registers a reader. Every Acquire must be paired with Release.
func (s *Snapshot) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs++
}

// Release drops a reader reference. The last reader of a retired
// snapshot closes its indexes.
func (s *Snapshot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	if s.retired && s.refs == 0 {
		s.closeLocked()
	}
}

// Retire marks the snapshot as superseded. Index handles stay open until
// in-flight readers finish; with no readers they close immediately.
func (s *Snapshot) Retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return
	}
	s.retired = true
	if s.refs == 0 {
		s.closeLocked()
	}
}

func (s *Snapshot) closeLocked() {
	if s.Lexical != nil {
		_ = s.Lexical.Close()
		s.Lexical = nil
	}
	if s.Vector != nil {
		_ = s.Vector.Close()
		s.Vector = nil
	}
}

// Chunk resolves a chunk id, nil when unknown.
func (s *Snapshot) Chunk(id string) *chunk.Chunk {
	return s.Chunks[id]
}

// Stats summarizes the snapshot.
type Stats struct {
	Version    int       `json:"version"`
	BuiltAt    time.Time `json:"built_at"`
	Mode       Mode      `json:"mode"`
	EmbedModel string    `json:"embed_model,omitempty"`
	Dimensions int       `json:"dimensions,omitempty"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	Categories int       `json:"categories"`
}

// Stats returns summary statistics.
func (s *Snapshot) Stats() Stats {
	categories := make(map[string]struct{})
	for _, doc := range s.Documents {
		categories[doc.Category] = struct{}{}
	}
	return Stats{
		Version:    s.Version,
		BuiltAt:    s.BuiltAt,
		Mode:       s.Mode,
		EmbedModel: s.EmbedModel,
		Dimensions: s.Dimensions,
		Documents:  len(s.Documents),
		Chunks:     len(s.Chunks),
		Categories: len(categories),
	}
}
