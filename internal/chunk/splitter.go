package chunk

import (
	"regexp"
	"strings"

	"github.com/HlibHav/support-kb/internal/source"
)

// headingPattern matches markdown headings: # Title through ###### Title.
var headingPattern = regexp.MustCompile(`^#{1,6}\s+\S`)

// paragraphBreak matches one or more blank lines between paragraphs.
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Splitter splits documents on semantic boundaries (headings, paragraphs)
// first, falling back to fixed-size windows with overlap for oversized
// units. Splitting is deterministic: identical input text always yields
// identical chunk boundaries and ids.
type Splitter struct {
	opts Options
}

// NewSplitter creates a splitter, applying defaults for zero options.
func NewSplitter(opts Options) *Splitter {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OverlapTokens < 0 || opts.OverlapTokens >= opts.MaxTokens {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	if opts.MinTokens <= 0 {
		opts.MinTokens = DefaultMinTokens
	}
	return &Splitter{opts: opts}
}

// Split chunks a document. Whitespace-only documents produce no chunks;
// a document below the minimum chunk size produces exactly one chunk
// containing the whole text.
func (s *Splitter) Split(doc *source.Document) []*Chunk {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	var texts []string
	if estimateTokens(text) < s.opts.MinTokens {
		texts = []string{text}
	} else {
		for _, section := range splitSections(text) {
			texts = append(texts, s.splitSection(section)...)
		}
	}

	chunks := make([]*Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, &Chunk{
			ID:         ID(doc.ID, i),
			DocumentID: doc.ID,
			Text:       t,
			Position:   i,
			Category:   doc.Category,
		})
	}
	return chunks
}

// splitSections splits text into heading-delimited sections. The heading
// line stays with its section so each chunk remains independently useful.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current []string

	flush := func() {
		section := strings.TrimSpace(strings.Join(current, "\n"))
		if section != "" {
			sections = append(sections, section)
		}
		current = current[:0]
	}

	for _, line := range lines {
		if headingPattern.MatchString(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return sections
}

// splitSection fits a section into chunks of at most MaxTokens: whole if it
// fits, greedy paragraph packing otherwise, window splitting for paragraphs
// that alone exceed the maximum.
func (s *Splitter) splitSection(section string) []string {
	if estimateTokens(section) <= s.opts.MaxTokens {
		return []string{section}
	}

	var out []string
	var packed []string
	packedTokens := 0

	flush := func() {
		if len(packed) > 0 {
			out = append(out, strings.Join(packed, "\n\n"))
			packed = packed[:0]
			packedTokens = 0
		}
	}

	for _, para := range splitParagraphs(section) {
		tokens := estimateTokens(para)
		if tokens > s.opts.MaxTokens {
			flush()
			out = append(out, s.windowSplit(para)...)
			continue
		}
		if packedTokens+tokens > s.opts.MaxTokens {
			flush()
		}
		packed = append(packed, para)
		packedTokens += tokens
	}
	flush()

	return out
}

// splitParagraphs splits on blank lines, dropping whitespace-only units.
func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// windowSplit cuts text into fixed-size rune windows. Each window after
// the first starts OverlapTokens before the previous window's end.
func (s *Splitter) windowSplit(text string) []string {
	maxChars := s.opts.MaxTokens * CharsPerToken
	overlapChars := s.opts.OverlapTokens * CharsPerToken
	step := maxChars - overlapChars

	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			out = append(out, window)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
