package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HlibHav/support-kb/internal/chunk"
	kberrors "github.com/HlibHav/support-kb/internal/errors"
	"github.com/HlibHav/support-kb/internal/source"
	"github.com/HlibHav/support-kb/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

// writeVersion stages, fills, and commits a lexical-only snapshot with
// one document and one chunk per given text.
func writeVersion(t *testing.T, s *Store, version int, texts ...string) {
	t.Helper()
	dir, err := s.Stage(version)
	require.NoError(t, err)

	catalog, err := store.OpenCatalog(filepath.Join(dir, CatalogFileName))
	require.NoError(t, err)
	lexical, err := store.NewLexicalIndex(filepath.Join(dir, LexicalDirName), true)
	require.NoError(t, err)

	for i, text := range texts {
		docID := source.DocumentID(filepath.Join("docs", "doc"+string(rune('a'+i))+".md"))
		c := &chunk.Chunk{
			ID:         chunk.ID(docID, 0),
			DocumentID: docID,
			Text:       text,
			Category:   "docs",
		}
		doc := &source.Document{
			ID:          docID,
			Title:       "Doc",
			SourcePath:  "docs/doc.md",
			Category:    "docs",
			ContentHash: "hash",
			ModTime:     time.Unix(1700000000, 0),
		}
		require.NoError(t, catalog.PutDocument(doc, []*chunk.Chunk{c}))
		require.NoError(t, lexical.Add(context.Background(), []*chunk.Chunk{c}))
	}

	require.NoError(t, catalog.Close())
	require.NoError(t, lexical.Close())

	require.NoError(t, WriteManifest(filepath.Join(dir, ManifestFileName), &Manifest{
		Version:   version,
		BuiltAt:   time.Unix(1700000000, 0),
		Mode:      ModeLexical,
		Documents: len(texts),
		Chunks:    len(texts),
	}))
	require.NoError(t, s.Commit(version))
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	writeVersion(t, s, 1, "refunds are processed within five days", "invoices arrive monthly")
	require.NoError(t, s.Publish(1))

	snap, err := s.LoadCurrent()
	require.NoError(t, err)
	defer snap.Retire()

	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, ModeLexical, snap.Mode)
	assert.Len(t, snap.Documents, 2)
	assert.Len(t, snap.Chunks, 2)
	assert.Nil(t, snap.Vector)

	results, err := snap.Lexical.Search(context.Background(), "refunds", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotNil(t, snap.Chunk(results[0].ID))
}

func TestStore_LoadCurrentWithoutSnapshot(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadCurrent()
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeNoSnapshot, kberrors.CodeOf(err))
}

func TestStore_PublishSwitchesVersions(t *testing.T) {
	s := newTestStore(t)

	writeVersion(t, s, 1, "old content")
	require.NoError(t, s.Publish(1))
	writeVersion(t, s, 2, "new content")
	require.NoError(t, s.Publish(2))

	version, err := s.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	snap, err := s.LoadCurrent()
	require.NoError(t, err)
	defer snap.Retire()
	assert.Equal(t, 2, snap.Version)
}

func TestStore_ManifestMismatchIsCorrupt(t *testing.T) {
	s := newTestStore(t)
	writeVersion(t, s, 1, "some content")

	// Claim a chunk the catalog does not have.
	manifestPath := filepath.Join(s.Dir(1), ManifestFileName)
	m, err := ReadManifest(manifestPath)
	require.NoError(t, err)
	m.Chunks = 99
	require.NoError(t, WriteManifest(manifestPath, m))
	require.NoError(t, s.Publish(1))

	_, err = s.LoadCurrent()
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeCorruptSnapshot, kberrors.CodeOf(err))
}

func TestStore_StagingIsInvisibleUntilCommit(t *testing.T) {
	s := newTestStore(t)
	writeVersion(t, s, 1, "published")
	require.NoError(t, s.Publish(1))

	_, err := s.Stage(2)
	require.NoError(t, err)

	versions, err := s.Versions()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions, "staging directories are not versions")

	next, err := s.NextVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestStore_StageFromPrevious(t *testing.T) {
	s := newTestStore(t)
	writeVersion(t, s, 1, "seed content")

	dir, err := s.StageFromPrevious(1, 2)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, CatalogFileName))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ManifestFileName))
	assert.NoError(t, err)

	require.NoError(t, s.Commit(2))
	require.NoError(t, s.Publish(2))
}

func TestStore_PruneKeepsCurrentAndN(t *testing.T) {
	s := newTestStore(t)
	for v := 1; v <= 4; v++ {
		writeVersion(t, s, v, "content")
	}
	require.NoError(t, s.Publish(4))
	_, err := s.Stage(9) // stray staging dir
	require.NoError(t, err)

	require.NoError(t, s.Prune(1))

	versions, err := s.Versions()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, versions)

	_, err = os.Stat(s.stagingDir(9))
	assert.True(t, os.IsNotExist(err), "stray staging directories are pruned")
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	writeVersion(t, s, 1, "content")
	require.NoError(t, s.Publish(1))

	require.NoError(t, s.Clear())

	version, err := s.CurrentVersion()
	require.NoError(t, err)
	assert.Zero(t, version)

	versions, err := s.Versions()
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestSnapshot_RetireWaitsForReaders(t *testing.T) {
	s := newTestStore(t)
	writeVersion(t, s, 1, "refund details")
	require.NoError(t, s.Publish(1))

	snap, err := s.LoadCurrent()
	require.NoError(t, err)

	snap.Acquire()
	snap.Retire()

	// The in-flight reader can still search.
	results, err := snap.Lexical.Search(context.Background(), "refund", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	snap.Release()
	assert.Nil(t, snap.Lexical, "last release closes a retired snapshot")
}
