package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	unicodetokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/HlibHav/support-kb/internal/chunk"
)

const (
	// kbAnalyzerName is the analyzer applied to chunk content.
	kbAnalyzerName = "kb_text"

	// phraseBoost ranks exact phrase hits above bag-of-words hits.
	phraseBoost = 5.0

	// categoryBoost lifts chunks whose category matches a query term.
	categoryBoost = 2.0
)

// LexicalIndex wraps a bleve index for keyword search over chunks.
// Scoring is tf-idf based; higher is better and scores are unbounded.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// lexicalDoc is the indexed document shape.
type lexicalDoc struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// NewLexicalIndex creates a lexical index at path, or in memory when path
// is empty. The stemming flag is baked into the index mapping and applies
// for the index's whole lifetime.
func NewLexicalIndex(path string, stemming bool) (*LexicalIndex, error) {
	indexMapping, err := createIndexMapping(stemming)
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}

	return &LexicalIndex{index: idx, path: path}, nil
}

// OpenLexicalIndex opens an existing on-disk lexical index. The analyzer
// configuration is read from the persisted mapping.
func OpenLexicalIndex(path string) (*LexicalIndex, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexical index %s: %w", path, err)
	}
	return &LexicalIndex{index: idx, path: path}, nil
}

// createIndexMapping builds the bleve mapping: analyzed content with term
// vectors plus an exact-match category field.
func createIndexMapping(stemming bool) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	filters := []string{lowercase.Name, en.StopName}
	if stemming {
		filters = append(filters, porter.Name)
	}
	err := indexMapping.AddCustomAnalyzer(kbAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetokenizer.Name,
		"token_filters": filters,
	})
	if err != nil {
		return nil, err
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = kbAnalyzerName
	contentField.IncludeTermVectors = true
	contentField.Store = false

	categoryField := bleve.NewTextFieldMapping()
	categoryField.Analyzer = keyword.Name
	categoryField.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("category", categoryField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = kbAnalyzerName

	return indexMapping, nil
}

// Add indexes chunks in a single batch. Re-adding an existing chunk id
// replaces it.
func (l *LexicalIndex) Add(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := l.index.NewBatch()
	for _, c := range chunks {
		doc := lexicalDoc{Content: c.Text, Category: strings.ToLower(c.Category)}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// Remove deletes chunks by id. Unknown ids are ignored.
func (l *LexicalIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := l.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("execute delete batch: %w", err)
	}
	return nil
}

// Search runs a keyword query and returns up to limit hits ordered by
// descending score. Empty queries return no hits.
func (l *LexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return []*LexicalResult{}, nil
	}

	req := bleve.NewSearchRequest(l.buildQuery(queryStr))
	req.Size = limit
	req.IncludeLocations = true

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	phraseHits, err := l.phraseHits(ctx, queryStr, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ID:           hit.ID,
			Score:        hit.Score,
			MatchedTerms: matchedTerms(hit),
			PhraseMatch:  phraseHits[hit.ID],
		})
	}
	return results, nil
}

// buildQuery combines a bag-of-words match, a boosted exact phrase, and
// per-term category matches into one disjunction.
func (l *LexicalIndex) buildQuery(queryStr string) *query.DisjunctionQuery {
	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	disjunction := bleve.NewDisjunctionQuery(matchQuery)

	if len(strings.Fields(queryStr)) > 1 {
		phraseQuery := bleve.NewMatchPhraseQuery(queryStr)
		phraseQuery.SetField("content")
		phraseQuery.SetBoost(phraseBoost)
		disjunction.AddQuery(phraseQuery)
	}

	for _, term := range strings.Fields(strings.ToLower(queryStr)) {
		termQuery := bleve.NewTermQuery(term)
		termQuery.SetField("category")
		termQuery.SetBoost(categoryBoost)
		disjunction.AddQuery(termQuery)
	}

	return disjunction
}

// phraseHits returns the set of chunk ids containing the query as an
// exact phrase. Single-term queries trivially have no phrase hits.
func (l *LexicalIndex) phraseHits(ctx context.Context, queryStr string, limit int) (map[string]bool, error) {
	if len(strings.Fields(queryStr)) < 2 {
		return nil, nil
	}

	phraseQuery := bleve.NewMatchPhraseQuery(queryStr)
	phraseQuery.SetField("content")

	req := bleve.NewSearchRequest(phraseQuery)
	req.Size = limit

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("phrase search: %w", err)
	}

	hits := make(map[string]bool, len(result.Hits))
	for _, hit := range result.Hits {
		hits[hit.ID] = true
	}
	return hits, nil
}

// DocCount returns the number of indexed chunks.
func (l *LexicalIndex) DocCount() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, fmt.Errorf("lexical index is closed")
	}
	return l.index.DocCount()
}

// Close closes the index. Bleve persists on-disk indexes incrementally,
// so no explicit flush is needed.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}

// matchedTerms extracts the analyzed terms matched in the content field.
func matchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field != "content" {
			continue
		}
		for term := range locations {
			seen[term] = struct{}{}
		}
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	return terms
}
