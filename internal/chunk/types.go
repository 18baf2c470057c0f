// Package chunk splits documents into retrievable units sized for
// embedding and indexing.
package chunk

import "fmt"

// Chunk size defaults. Sizes are approximate tokens, estimated at
// 4 characters per token.
const (
	DefaultMaxTokens     = 512
	DefaultOverlapTokens = 64
	DefaultMinTokens     = 100
	CharsPerToken        = 4
)

// Chunk is a retrievable sub-unit of a document. Chunks are never mutated
// after creation: when the source document changes, its old chunk ids are
// retired and new ones minted.
type Chunk struct {
	// ID is derived from the document id and the chunk's position.
	ID string

	// DocumentID is a non-owning back-reference to the source document.
	DocumentID string

	// Text is the chunk content.
	Text string

	// Position is the 0-based sequence number within the document.
	Position int

	// Category is the document's category hint, carried for boosting.
	Category string
}

// ID derives the stable chunk id for a document id and position.
func ID(docID string, position int) string {
	return fmt.Sprintf("%s-%04d", docID, position)
}

// Options configures the splitter.
type Options struct {
	// MaxTokens is the maximum chunk size.
	MaxTokens int

	// OverlapTokens is the trailing context carried into the next chunk
	// when an oversized unit is window-split, so queries landing near a
	// boundary still match.
	OverlapTokens int

	// MinTokens is the minimum viable chunk size. A document below this
	// yields exactly one chunk equal to the whole document.
	MinTokens int
}

// estimateTokens approximates the token count of a string.
func estimateTokens(s string) int {
	return len(s) / CharsPerToken
}
