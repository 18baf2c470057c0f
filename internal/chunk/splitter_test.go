package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HlibHav/support-kb/internal/source"
)

func doc(text string) *source.Document {
	return &source.Document{
		ID:       "abcdef0123456789",
		Text:     text,
		Category: "General",
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := "# Refunds\n\nRefunds take five days.\n\n# Billing\n\nInvoices are monthly."
	s := NewSplitter(Options{})

	first := s.Split(doc(text))
	second := s.Split(doc(text))

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestSplit_EmptyDocumentYieldsNoChunks(t *testing.T) {
	s := NewSplitter(Options{})
	assert.Nil(t, s.Split(doc("")))
	assert.Nil(t, s.Split(doc("   \n\t\n  ")))
}

func TestSplit_ShortDocumentYieldsSingleChunk(t *testing.T) {
	s := NewSplitter(Options{MaxTokens: 512, MinTokens: 100})
	text := "# A\n\nshort\n\n# B\n\nalso short"

	chunks := s.Split(doc(text))

	require.Len(t, chunks, 1, "document below min size must be one chunk")
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, ID("abcdef0123456789", 0), chunks[0].ID)
}

func TestSplit_HeadingBoundaries(t *testing.T) {
	para := strings.Repeat("refund policy details. ", 30) // ~140 tokens
	text := "# Refunds\n\n" + para + "\n\n# Billing\n\n" + para
	s := NewSplitter(Options{MaxTokens: 160, OverlapTokens: 16, MinTokens: 10})

	chunks := s.Split(doc(text))

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "# Refunds"))
	found := false
	for _, c := range chunks {
		if strings.HasPrefix(c.Text, "# Billing") {
			found = true
		}
	}
	assert.True(t, found, "each heading starts its own chunk")
}

func TestSplit_OversizedParagraphWindowed(t *testing.T) {
	// One paragraph far above the max, no internal boundaries.
	para := strings.Repeat("x", 8000)
	s := NewSplitter(Options{MaxTokens: 500, OverlapTokens: 50, MinTokens: 10})

	chunks := s.Split(doc(para))

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 500*CharsPerToken)
	}

	// Windows overlap: the tail of chunk N reappears at the head of N+1.
	tail := chunks[0].Text[len(chunks[0].Text)-50:]
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail))
}

func TestSplit_PositionsAreSequential(t *testing.T) {
	text := "# A\n\n" + strings.Repeat("alpha beta gamma. ", 60) +
		"\n\n# B\n\n" + strings.Repeat("delta epsilon. ", 60)
	s := NewSplitter(Options{MaxTokens: 100, OverlapTokens: 10, MinTokens: 10})

	chunks := s.Split(doc(text))

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, fmt.Sprintf("abcdef0123456789-%04d", i), c.ID)
		assert.Equal(t, "abcdef0123456789", c.DocumentID)
		assert.Equal(t, "General", c.Category)
	}
}

func TestSplitParagraphs_DropsWhitespaceUnits(t *testing.T) {
	paras := splitParagraphs("one\n\n   \n\ntwo\n\n\t\n\nthree")
	assert.Equal(t, []string{"one", "two", "three"}, paras)
}

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(Options{})
	assert.Equal(t, DefaultMaxTokens, s.opts.MaxTokens)
	assert.Equal(t, DefaultOverlapTokens, s.opts.OverlapTokens)
	assert.Equal(t, DefaultMinTokens, s.opts.MinTokens)
}
