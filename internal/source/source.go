package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	kberrors "github.com/HlibHav/support-kb/internal/errors"
)

// supportedExtensions maps recognized file extensions to their extractors.
var supportedExtensions = map[string]func([]byte) (string, error){
	".md":       extractPlain,
	".markdown": extractPlain,
	".txt":      extractPlain,
	".text":     extractPlain,
	".html":     extractHTML,
	".htm":      extractHTML,
}

// Adapter discovers and normalizes documents under a content root.
type Adapter struct {
	root    string
	workers int
}

// NewAdapter creates an adapter for the given content root.
func NewAdapter(root string) *Adapter {
	return &Adapter{
		root:    root,
		workers: runtime.NumCPU(),
	}
}

// List discovers all supported documents under the content root.
//
// Unrecognized extensions and unreadable files are returned as Problems,
// not errors: a single bad file must not abort the whole build. Documents
// are sorted by ID so chunk-id assignment is deterministic regardless of
// filesystem iteration order.
func (a *Adapter) List(ctx context.Context) ([]*Document, []Problem, error) {
	info, err := os.Stat(a.root)
	if err != nil {
		return nil, nil, kberrors.Wrap(kberrors.ErrCodeReadError, err).
			WithDetail("path", a.root)
	}
	if !info.IsDir() {
		return nil, nil, kberrors.Newf(kberrors.ErrCodeReadError,
			"content root is not a directory: %s", a.root)
	}

	var paths []string
	var problems []Problem

	walkErr := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			problems = append(problems, Problem{Path: path, Code: kberrors.ErrCodeReadError, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			// Hidden directories are not document sources.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := supportedExtensions[ext]; !ok {
			rel := a.relPath(path)
			slog.Warn("skipping unsupported document format",
				slog.String("path", rel),
				slog.String("extension", ext))
			problems = append(problems, Problem{
				Path: rel,
				Code: kberrors.ErrCodeUnsupportedFormat,
				Err:  kberrors.Newf(kberrors.ErrCodeUnsupportedFormat, "unsupported extension %q", ext),
			})
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return nil, problems, kberrors.Wrap(kberrors.ErrCodeReadError, walkErr)
	}

	docs := make([]*Document, 0, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := a.readDocument(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("skipping unreadable document",
					slog.String("path", a.relPath(path)),
					slog.String("error", err.Error()))
				problems = append(problems, Problem{
					Path: a.relPath(path),
					Code: kberrors.ErrCodeReadError,
					Err:  err,
				})
				return nil
			}
			docs = append(docs, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, problems, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	return docs, problems, nil
}

// readDocument loads and normalizes a single file.
func (a *Adapter) readDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	extract := supportedExtensions[ext]
	text, err := extract(raw)
	if err != nil {
		return nil, err
	}

	rel := a.relPath(path)
	hash := sha256.Sum256(raw)

	return &Document{
		ID:          DocumentID(rel),
		Title:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Text:        text,
		SourcePath:  rel,
		Category:    categoryFor(rel),
		ContentHash: hex.EncodeToString(hash[:]),
		ModTime:     info.ModTime(),
	}, nil
}

func (a *Adapter) relPath(path string) string {
	rel, err := filepath.Rel(a.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// DocumentID derives the stable document id from a relative path.
func DocumentID(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:])[:16]
}

// categoryFor derives the category hint from the first path element.
func categoryFor(relPath string) string {
	parts := strings.SplitN(relPath, "/", 2)
	if len(parts) < 2 {
		return DefaultCategory
	}
	return parts[0]
}

func extractPlain(raw []byte) (string, error) {
	return string(raw), nil
}
