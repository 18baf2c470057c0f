package snapshot

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	kberrors "github.com/HlibHav/support-kb/internal/errors"
	"github.com/HlibHav/support-kb/internal/store"
)

// Well-known file names inside a snapshot directory.
const (
	snapshotsDirName = "snapshots"
	currentFileName  = "CURRENT"
	CatalogFileName  = "meta.db"
	LexicalDirName   = "lexical"
	VectorFileName   = "vectors.hnsw"
)

// Store manages snapshot directories under <dataDir>/snapshots. The
// CURRENT file names the published version; everything else in the
// directory is either a committed version, a staging directory from an
// in-progress build, or garbage from a crash.
type Store struct {
	root string
}

// NewStore creates a snapshot store rooted at dataDir.
func NewStore(dataDir string) (*Store, error) {
	root := filepath.Join(dataDir, snapshotsDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshots directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Dir returns the directory of a committed version.
func (s *Store) Dir(version int) string {
	return filepath.Join(s.root, fmt.Sprintf("v%06d", version))
}

func (s *Store) stagingDir(version int) string {
	return s.Dir(version) + ".tmp"
}

// CurrentVersion returns the published version, zero when nothing has
// been published yet.
func (s *Store) CurrentVersion() (int, error) {
	data, err := os.ReadFile(filepath.Join(s.root, currentFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read CURRENT: %w", err)
	}

	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || version <= 0 {
		return 0, kberrors.Newf(kberrors.ErrCodeCorruptSnapshot,
			"CURRENT file is malformed: %q", strings.TrimSpace(string(data)))
	}
	return version, nil
}

// Versions lists committed snapshot versions in ascending order.
func (s *Store) Versions() ([]int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read snapshots directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		if !strings.HasPrefix(entry.Name(), "v") {
			continue
		}
		v, err := strconv.Atoi(entry.Name()[1:])
		if err != nil || v <= 0 {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// NextVersion returns the version number the next build should use.
func (s *Store) NextVersion() (int, error) {
	versions, err := s.Versions()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 1, nil
	}
	return versions[len(versions)-1] + 1, nil
}

// Stage creates a fresh staging directory for a build. Leftovers from a
// crashed build of the same version are discarded.
func (s *Store) Stage(version int) (string, error) {
	dir := s.stagingDir(version)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear staging directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return dir, nil
}

// StageFromPrevious creates the staging directory as a copy of a
// committed version, so an incremental build can patch it in place.
func (s *Store) StageFromPrevious(prev, version int) (string, error) {
	dir, err := s.Stage(version)
	if err != nil {
		return "", err
	}
	if err := copyDir(s.Dir(prev), dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("copy snapshot v%06d: %w", prev, err)
	}
	return dir, nil
}

// Abort discards a staging directory.
func (s *Store) Abort(version int) {
	if err := os.RemoveAll(s.stagingDir(version)); err != nil {
		slog.Warn("failed to remove staging directory", "version", version, "error", err)
	}
}

// Commit atomically turns the staging directory into the committed
// version directory.
func (s *Store) Commit(version int) error {
	if err := os.Rename(s.stagingDir(version), s.Dir(version)); err != nil {
		return kberrors.Wrap(kberrors.ErrCodeDiskWrite,
			fmt.Errorf("commit snapshot v%06d: %w", version, err))
	}
	return nil
}

// Publish points CURRENT at a committed version. Readers that loaded the
// old version keep serving it until they release; new loads see the new
// version. The pointer write is temp-file + rename, so a crash leaves
// either the old or the new pointer, never a torn one.
func (s *Store) Publish(version int) error {
	path := filepath.Join(s.root, currentFileName)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, []byte(strconv.Itoa(version)+"\n"), 0o644); err != nil {
		return kberrors.Wrap(kberrors.ErrCodeDiskWrite, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return kberrors.Wrap(kberrors.ErrCodeDiskWrite, err)
	}

	slog.Info("snapshot published", "version", version)
	return nil
}

// Load opens a committed version and verifies it against its manifest.
// Any inconsistency yields a corrupt-snapshot error; a snapshot that
// cannot be verified must not serve queries.
func (s *Store) Load(version int) (*Snapshot, error) {
	dir := s.Dir(version)

	manifest, err := ReadManifest(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeCorruptSnapshot, err)
	}

	catalog, err := store.OpenCatalog(filepath.Join(dir, CatalogFileName))
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeCorruptSnapshot, err)
	}
	defer func() { _ = catalog.Close() }()

	docs, err := catalog.Documents()
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeCorruptSnapshot, err)
	}
	chunks, err := catalog.Chunks()
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeCorruptSnapshot, err)
	}

	if len(docs) != manifest.Documents || len(chunks) != manifest.Chunks {
		return nil, kberrors.Newf(kberrors.ErrCodeCorruptSnapshot,
			"catalog holds %d documents / %d chunks, manifest expects %d / %d",
			len(docs), len(chunks), manifest.Documents, manifest.Chunks)
	}

	lexical, err := store.OpenLexicalIndex(filepath.Join(dir, LexicalDirName))
	if err != nil {
		return nil, kberrors.Wrap(kberrors.ErrCodeCorruptSnapshot, err)
	}

	snap := &Snapshot{
		Version:    version,
		BuiltAt:    manifest.BuiltAt,
		Mode:       manifest.Mode,
		EmbedModel: manifest.EmbedModel,
		Dimensions: manifest.Dimensions,
		Documents:  docs,
		Chunks:     chunks,
		Lexical:    lexical,
	}

	lexCount, err := lexical.DocCount()
	if err != nil || int(lexCount) != manifest.Chunks {
		snap.Retire()
		return nil, kberrors.Newf(kberrors.ErrCodeCorruptSnapshot,
			"lexical index holds %d chunks, manifest expects %d", lexCount, manifest.Chunks)
	}

	if manifest.Mode == ModeHybrid {
		vector, err := store.LoadVectorIndex(filepath.Join(dir, VectorFileName))
		if err != nil {
			snap.Retire()
			return nil, kberrors.Wrap(kberrors.ErrCodeCorruptSnapshot, err)
		}
		if vector.Count() != manifest.Chunks {
			_ = vector.Close()
			snap.Retire()
			return nil, kberrors.Newf(kberrors.ErrCodeCorruptSnapshot,
				"vector index holds %d chunks, manifest expects %d", vector.Count(), manifest.Chunks)
		}
		snap.Vector = vector
	}

	return snap, nil
}

// LoadCurrent loads the published version. With nothing published it
// returns a no-snapshot error.
func (s *Store) LoadCurrent() (*Snapshot, error) {
	version, err := s.CurrentVersion()
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, kberrors.ErrNoSnapshot
	}
	return s.Load(version)
}

// Prune deletes old versions, keeping the published one and up to keep
// predecessors, plus any stray staging directories.
func (s *Store) Prune(keep int) error {
	current, err := s.CurrentVersion()
	if err != nil {
		return err
	}
	versions, err := s.Versions()
	if err != nil {
		return err
	}

	retain := make(map[int]bool, keep+1)
	retain[current] = true
	kept := 0
	for i := len(versions) - 1; i >= 0 && kept < keep; i-- {
		if versions[i] < current {
			retain[versions[i]] = true
			kept++
		}
	}

	for _, v := range versions {
		if retain[v] {
			continue
		}
		if err := os.RemoveAll(s.Dir(v)); err != nil {
			slog.Warn("failed to prune snapshot", "version", v, "error", err)
			continue
		}
		slog.Debug("snapshot pruned", "version", v)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".tmp") {
			_ = os.RemoveAll(filepath.Join(s.root, entry.Name()))
		}
	}
	return nil
}

// Clear removes every snapshot and the CURRENT pointer.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return kberrors.Wrap(kberrors.ErrCodeDiskWrite, err)
	}
	return os.MkdirAll(s.root, 0o755)
}

// copyDir recursively copies src into dst. Used to seed incremental
// staging; snapshot files are flat enough that a plain copy suffices.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
