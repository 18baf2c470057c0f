package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HlibHav/support-kb/internal/store"
)

func TestFuse_CorroboratedHitRanksFirst(t *testing.T) {
	// A is found by both legs, B only lexically, C only by vector.
	lex := []*store.LexicalResult{
		{ID: "A", Score: 10},
		{ID: "B", Score: 10},
	}
	vec := []*store.VectorResult{
		{ID: "A", Score: 0.9},
		{ID: "C", Score: 0.9},
	}

	ranked := Fuse(lex, vec, DefaultFusionConfig())
	require.Len(t, ranked, 3)

	assert.Equal(t, "A", ranked[0].id)
	assert.Equal(t, SourceBoth, ranked[0].source)
	assert.Greater(t, ranked[0].combined, ranked[1].combined)

	// Vector weight exceeds lexical weight, so C beats B.
	assert.Equal(t, "C", ranked[1].id)
	assert.Equal(t, "B", ranked[2].id)
}

func TestFuse_NormalizesEachLegToUnitMax(t *testing.T) {
	cfg := FusionConfig{LexicalWeight: 1.0, VectorWeight: 0.0}

	lex := []*store.LexicalResult{
		{ID: "top", Score: 42.5},
		{ID: "half", Score: 21.25},
	}

	ranked := Fuse(lex, nil, cfg)
	require.Len(t, ranked, 2)
	assert.InDelta(t, 1.0, ranked[0].combined, 1e-9)
	assert.InDelta(t, 0.5, ranked[1].combined, 1e-9)
}

func TestFuse_BonusAppliedOnlyToBothSources(t *testing.T) {
	cfg := FusionConfig{LexicalWeight: 0.5, VectorWeight: 0.5, Bonus: 0.1}

	lex := []*store.LexicalResult{{ID: "A", Score: 5}}
	vec := []*store.VectorResult{{ID: "A", Score: 0.8}}

	ranked := Fuse(lex, vec, cfg)
	require.Len(t, ranked, 1)
	// Both legs normalize to 1.0: 0.5 + 0.5 + bonus.
	assert.InDelta(t, 1.1, ranked[0].combined, 1e-9)
}

func TestFuse_TieBreakPhraseThenID(t *testing.T) {
	cfg := FusionConfig{LexicalWeight: 1.0}

	lex := []*store.LexicalResult{
		{ID: "z", Score: 10, PhraseMatch: false},
		{ID: "a", Score: 10, PhraseMatch: true},
	}
	ranked := Fuse(lex, nil, cfg)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].id, "phrase match wins the tie")

	lex = []*store.LexicalResult{
		{ID: "b", Score: 10},
		{ID: "a", Score: 10},
	}
	ranked = Fuse(lex, nil, cfg)
	assert.Equal(t, "a", ranked[0].id, "equal scores fall back to id order")
}

func TestFuse_TieBreakIgnoresRawLexicalScore(t *testing.T) {
	// With a zero lexical weight both chunks fuse to the same combined
	// score even though their lexical scores differ. The lower chunk id
	// must win the tie regardless of the stronger lexical hit.
	cfg := FusionConfig{LexicalWeight: 0, VectorWeight: 1.0}

	lex := []*store.LexicalResult{
		{ID: "b", Score: 50},
		{ID: "a", Score: 10},
	}
	ranked := Fuse(lex, nil, cfg)
	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].combined, ranked[1].combined)
	assert.Equal(t, "a", ranked[0].id)
}

func TestFuse_EmptyLegs(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, DefaultFusionConfig()))

	ranked := Fuse(nil, []*store.VectorResult{{ID: "A", Score: 0.5}}, DefaultFusionConfig())
	require.Len(t, ranked, 1)
	assert.Equal(t, SourceVector, ranked[0].source)
}
