// Package store provides the persistent index primitives backing a
// snapshot: a bleve lexical index, an HNSW vector index, and a sqlite
// catalog of documents and chunks.
package store

import "fmt"

// LexicalResult is a single hit from the lexical index.
type LexicalResult struct {
	// ID is the chunk id.
	ID string

	// Score is the raw relevance score (not normalized).
	Score float64

	// MatchedTerms are the analyzed query terms found in the chunk.
	MatchedTerms []string

	// PhraseMatch reports whether the chunk contains the query terms
	// adjacent and in order.
	PhraseMatch bool
}

// VectorResult is a single hit from the vector index.
type VectorResult struct {
	// ID is the chunk id.
	ID string

	// Score is cosine similarity mapped to [0, 1].
	Score float64
}

// VectorConfig configures the HNSW vector index.
type VectorConfig struct {
	// Dimensions is the embedding dimension. Required.
	Dimensions int

	// M is the maximum number of graph neighbors per node.
	M int

	// EfSearch is the search beam width.
	EfSearch int
}

// ErrDimensionMismatch reports a vector whose dimension does not match
// the index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
