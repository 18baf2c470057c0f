// Package search fuses lexical and vector index hits into a single
// ranked result list.
package search

import "github.com/HlibHav/support-kb/internal/chunk"

// Result sources.
const (
	SourceLexical = "lexical"
	SourceVector  = "vector"
	SourceBoth    = "both"
)

// Empty-result reasons.
const (
	// ReasonNoIndex means no snapshot has been built yet.
	ReasonNoIndex = "no_index"

	// ReasonEmptyQuery means the query was blank after trimming.
	ReasonEmptyQuery = "empty_query"

	// ReasonBelowThreshold means hits existed but none scored above the
	// requested threshold.
	ReasonBelowThreshold = "below_threshold"

	// ReasonNoMatch means the query matched nothing.
	ReasonNoMatch = "no_match"
)

// Result is a single ranked hit.
type Result struct {
	// Chunk is the matched chunk.
	Chunk *chunk.Chunk `json:"chunk"`

	// Score is the fused relevance score.
	Score float64 `json:"score"`

	// LexScore is the normalized lexical leg score, zero if the chunk
	// was not a lexical hit.
	LexScore float64 `json:"lex_score"`

	// VecScore is the normalized vector leg score, zero if the chunk
	// was not a vector hit.
	VecScore float64 `json:"vec_score"`

	// Source records which legs produced the hit.
	Source string `json:"source"`

	// PhraseMatch reports an exact phrase hit in the lexical leg.
	PhraseMatch bool `json:"phrase_match,omitempty"`

	// MatchedTerms are the analyzed query terms found in the chunk.
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// ResultSet is a complete query response.
type ResultSet struct {
	// Results are hits in rank order.
	Results []*Result `json:"results"`

	// Degraded reports that the vector leg was skipped because no
	// embedder was available or the snapshot is lexical-only.
	Degraded bool `json:"degraded,omitempty"`

	// Reason explains an empty result list.
	Reason string `json:"reason,omitempty"`
}

// Options controls a single query.
type Options struct {
	// Limit caps the number of results. Required, must be positive.
	Limit int

	// Threshold drops results whose fused score falls below it.
	// Zero keeps everything.
	Threshold float64
}
