package search

import (
	"sort"

	"github.com/HlibHav/support-kb/internal/store"
)

// FusionConfig weights the two legs of hybrid search.
//
// Scores from each leg are max-normalized to [0, 1] before weighting, so
// the unbounded tf-idf scale and the bounded cosine scale are comparable.
// Chunks found by both legs receive Bonus on top: agreement between two
// independent signals is itself evidence of relevance.
type FusionConfig struct {
	LexicalWeight float64
	VectorWeight  float64
	Bonus         float64
}

// DefaultFusionConfig returns the default fusion weights. Vector gets the
// larger share: support queries are usually paraphrases, not quotes.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		LexicalWeight: 0.35,
		VectorWeight:  0.65,
		Bonus:         0.1,
	}
}

// fused is a chunk's intermediate fusion state.
type fused struct {
	id       string
	lexScore float64
	vecScore float64
	combined float64
	source   string
	phrase   bool
	terms    []string
}

// Fuse merges lexical and vector hits into one descending-ranked list.
//
// Ties are broken by phrase match, then by lower chunk id, so rankings
// are fully deterministic.
func Fuse(lex []*store.LexicalResult, vec []*store.VectorResult, cfg FusionConfig) []*fused {
	byID := make(map[string]*fused, len(lex)+len(vec))

	maxLex := 0.0
	for _, r := range lex {
		if r.Score > maxLex {
			maxLex = r.Score
		}
	}
	maxVec := 0.0
	for _, r := range vec {
		if r.Score > maxVec {
			maxVec = r.Score
		}
	}

	for _, r := range lex {
		norm := 0.0
		if maxLex > 0 {
			norm = r.Score / maxLex
		}
		byID[r.ID] = &fused{
			id:       r.ID,
			lexScore: norm,
			source:   SourceLexical,
			phrase:   r.PhraseMatch,
			terms:    r.MatchedTerms,
		}
	}

	for _, r := range vec {
		norm := 0.0
		if maxVec > 0 {
			norm = r.Score / maxVec
		}
		if f, ok := byID[r.ID]; ok {
			f.vecScore = norm
			f.source = SourceBoth
		} else {
			byID[r.ID] = &fused{
				id:       r.ID,
				vecScore: norm,
				source:   SourceVector,
			}
		}
	}

	out := make([]*fused, 0, len(byID))
	for _, f := range byID {
		f.combined = cfg.LexicalWeight*f.lexScore + cfg.VectorWeight*f.vecScore
		if f.source == SourceBoth {
			f.combined += cfg.Bonus
		}
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.combined != b.combined {
			return a.combined > b.combined
		}
		if a.phrase != b.phrase {
			return a.phrase
		}
		return a.id < b.id
	})

	return out
}
