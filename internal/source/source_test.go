package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/HlibHav/support-kb/internal/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestList_DiscoversSupportedFormats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "refunds.md", "# Refund policy\n\nRefunds take 5 days.")
	writeFile(t, root, "notes.txt", "plain notes")
	writeFile(t, root, "faq/billing.html", "<html><body><p>How to pay</p></body></html>")

	adapter := NewAdapter(root)
	docs, problems, err := adapter.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, problems)
	require.Len(t, docs, 3)

	byPath := map[string]*Document{}
	for _, d := range docs {
		byPath[d.SourcePath] = d
	}

	md := byPath["refunds.md"]
	require.NotNil(t, md)
	assert.Equal(t, "refunds", md.Title)
	assert.Equal(t, DefaultCategory, md.Category)
	assert.NotEmpty(t, md.ContentHash)
	assert.Contains(t, md.Text, "Refunds take 5 days.")

	html := byPath["faq/billing.html"]
	require.NotNil(t, html)
	assert.Equal(t, "faq", html.Category)
	assert.Equal(t, "How to pay", html.Text)
}

func TestList_SortedByID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zebra.txt", "z")
	writeFile(t, root, "alpha.txt", "a")
	writeFile(t, root, "mid.txt", "m")

	docs, _, err := NewAdapter(root).List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	for i := 1; i < len(docs); i++ {
		assert.Less(t, docs[i-1].ID, docs[i].ID, "documents must be sorted by id")
	}
}

func TestList_UnsupportedExtensionIsProblemNotError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "image.png", "binary")
	writeFile(t, root, "guide.md", "content")

	docs, problems, err := NewAdapter(root).List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Len(t, problems, 1)
	assert.Equal(t, kberrors.ErrCodeUnsupportedFormat, problems[0].Code)
	assert.Equal(t, "image.png", problems[0].Path)
}

func TestList_UnreadableFileIsProblemNotError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits are ignored for root")
	}
	root := t.TempDir()
	writeFile(t, root, "secret.md", "hidden")
	require.NoError(t, os.Chmod(filepath.Join(root, "secret.md"), 0o000))
	writeFile(t, root, "open.md", "visible")

	docs, problems, err := NewAdapter(root).List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Len(t, problems, 1)
	assert.Equal(t, kberrors.ErrCodeReadError, problems[0].Code)
}

func TestList_MissingRootFails(t *testing.T) {
	_, _, err := NewAdapter(filepath.Join(t.TempDir(), "nope")).List(context.Background())
	assert.Error(t, err)
}

func TestList_SkipsHiddenEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/config.txt", "ignored")
	writeFile(t, root, ".hidden.md", "ignored")
	writeFile(t, root, "kept.md", "kept")

	docs, problems, err := NewAdapter(root).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, problems)
	require.Len(t, docs, 1)
	assert.Equal(t, "kept.md", docs[0].SourcePath)
}

func TestDocumentID_Stable(t *testing.T) {
	assert.Equal(t, DocumentID("a/b.md"), DocumentID("a/b.md"))
	assert.NotEqual(t, DocumentID("a/b.md"), DocumentID("a/c.md"))
	assert.Len(t, DocumentID("a/b.md"), 16)
}

func TestExtractHTML_FallsBackToBody(t *testing.T) {
	text, err := extractHTML([]byte("<html><body>bare text</body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "bare text", text)
}
