package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HlibHav/support-kb/internal/chunk"
	"github.com/HlibHav/support-kb/internal/source"
)

// Catalog is the sqlite document/chunk catalog inside a snapshot. It is
// the source of truth for what the snapshot contains; the lexical and
// vector indexes are derived from it and verified against it on load.
type Catalog struct {
	db *sql.DB
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	source_path  TEXT NOT NULL,
	category     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	mod_time     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	text        TEXT NOT NULL,
	category    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`

// OpenCatalog opens or creates the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}

	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// PutDocument upserts a document and replaces all of its chunks in one
// transaction.
func (c *Catalog) PutDocument(doc *source.Document, chunks []*chunk.Chunk) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO documents (id, title, source_path, category, content_hash, mod_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source_path = excluded.source_path,
			category = excluded.category,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time`,
		doc.ID, doc.Title, doc.SourcePath, doc.Category, doc.ContentHash, doc.ModTime.Unix())
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", doc.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks (id, document_id, position, text, category)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ch := range chunks {
		if _, err := stmt.Exec(ch.ID, ch.DocumentID, ch.Position, ch.Text, ch.Category); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document and its chunks. Deleting an unknown
// document is not an error.
func (c *Catalog) DeleteDocument(docID string) error {
	if _, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	return nil
}

// ChunkIDs returns the chunk ids belonging to a document, ordered by
// position.
func (c *Catalog) ChunkIDs(docID string) ([]string, error) {
	rows, err := c.db.Query(`SELECT id FROM chunks WHERE document_id = ? ORDER BY position`, docID)
	if err != nil {
		return nil, fmt.Errorf("query chunk ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Documents loads all documents keyed by id. Text is not stored in the
// catalog; only metadata survives a build.
func (c *Catalog) Documents() (map[string]*source.Document, error) {
	rows, err := c.db.Query(`SELECT id, title, source_path, category, content_hash, mod_time FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make(map[string]*source.Document)
	for rows.Next() {
		var doc source.Document
		var modTime int64
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.SourcePath, &doc.Category, &doc.ContentHash, &modTime); err != nil {
			return nil, err
		}
		doc.ModTime = time.Unix(modTime, 0)
		docs[doc.ID] = &doc
	}
	return docs, rows.Err()
}

// Chunks loads all chunks keyed by id.
func (c *Catalog) Chunks() (map[string]*chunk.Chunk, error) {
	rows, err := c.db.Query(`SELECT id, document_id, position, text, category FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make(map[string]*chunk.Chunk)
	for rows.Next() {
		var ch chunk.Chunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text, &ch.Category); err != nil {
			return nil, err
		}
		chunks[ch.ID] = &ch
	}
	return chunks, rows.Err()
}

// Counts returns the number of documents and chunks.
func (c *Catalog) Counts() (docs int, chunks int, err error) {
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&docs); err != nil {
		return 0, 0, fmt.Errorf("count documents: %w", err)
	}
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	return docs, chunks, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
