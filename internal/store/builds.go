package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Build lifecycle states.
const (
	BuildStatusRunning   = "running"
	BuildStatusSucceeded = "succeeded"
	BuildStatusFailed    = "failed"
	BuildStatusCancelled = "cancelled"
)

// Build types.
const (
	BuildTypeFull        = "full"
	BuildTypeIncremental = "incremental"
)

// BuildRecord describes one build attempt. Records outlive snapshots:
// a failed build leaves a record but no snapshot.
type BuildRecord struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	SnapshotVersion int        `json:"snapshot_version,omitempty"`
	Documents       int        `json:"documents"`
	Chunks          int        `json:"chunks"`
	ChunksCreated   int        `json:"chunks_created"`
	ChunksRetired   int        `json:"chunks_retired"`
	Problems        []string   `json:"problems,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// BuildLog is the sqlite-backed history of build attempts, stored at the
// data-directory root so it survives snapshot retirement.
type BuildLog struct {
	db *sql.DB
}

const buildSchema = `
CREATE TABLE IF NOT EXISTS builds (
	id               TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       INTEGER NOT NULL,
	finished_at      INTEGER,
	snapshot_version INTEGER NOT NULL DEFAULT 0,
	documents        INTEGER NOT NULL DEFAULT 0,
	chunks           INTEGER NOT NULL DEFAULT 0,
	chunks_created   INTEGER NOT NULL DEFAULT 0,
	chunks_retired   INTEGER NOT NULL DEFAULT 0,
	problems         TEXT NOT NULL DEFAULT '[]',
	error            TEXT NOT NULL DEFAULT ''
);
`

// OpenBuildLog opens or creates the build history database at path.
func OpenBuildLog(path string) (*BuildLog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open build log %s: %w", path, err)
	}
	if _, err := db.Exec(buildSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create build log schema: %w", err)
	}
	return &BuildLog{db: db}, nil
}

// Put inserts or updates a build record.
func (l *BuildLog) Put(rec *BuildRecord) error {
	problems, err := json.Marshal(rec.Problems)
	if err != nil {
		return fmt.Errorf("marshal problems: %w", err)
	}

	var finished interface{}
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.Unix()
	}

	_, err = l.db.Exec(`INSERT INTO builds
		(id, type, status, started_at, finished_at, snapshot_version,
		 documents, chunks, chunks_created, chunks_retired, problems, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			snapshot_version = excluded.snapshot_version,
			documents = excluded.documents,
			chunks = excluded.chunks,
			chunks_created = excluded.chunks_created,
			chunks_retired = excluded.chunks_retired,
			problems = excluded.problems,
			error = excluded.error`,
		rec.ID, rec.Type, rec.Status, rec.StartedAt.Unix(), finished,
		rec.SnapshotVersion, rec.Documents, rec.Chunks,
		rec.ChunksCreated, rec.ChunksRetired, string(problems), rec.Error)
	if err != nil {
		return fmt.Errorf("store build record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a build record by id, or nil when not found.
func (l *BuildLog) Get(id string) (*BuildRecord, error) {
	rows, err := l.db.Query(`SELECT id, type, status, started_at, finished_at,
		snapshot_version, documents, chunks, chunks_created, chunks_retired, problems, error
		FROM builds WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query build %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanBuild(rows)
}

// Recent returns the latest build records, newest first.
func (l *BuildLog) Recent(limit int) ([]*BuildRecord, error) {
	rows, err := l.db.Query(`SELECT id, type, status, started_at, finished_at,
		snapshot_version, documents, chunks, chunks_created, chunks_retired, problems, error
		FROM builds ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*BuildRecord
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanBuild(rows *sql.Rows) (*BuildRecord, error) {
	var rec BuildRecord
	var started int64
	var finished sql.NullInt64
	var problems string

	err := rows.Scan(&rec.ID, &rec.Type, &rec.Status, &started, &finished,
		&rec.SnapshotVersion, &rec.Documents, &rec.Chunks,
		&rec.ChunksCreated, &rec.ChunksRetired, &problems, &rec.Error)
	if err != nil {
		return nil, fmt.Errorf("scan build record: %w", err)
	}

	rec.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		t := time.Unix(finished.Int64, 0)
		rec.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(problems), &rec.Problems); err != nil {
		return nil, fmt.Errorf("decode build problems: %w", err)
	}
	return &rec, nil
}

// Close closes the database.
func (l *BuildLog) Close() error {
	return l.db.Close()
}
