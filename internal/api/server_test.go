package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HlibHav/support-kb/internal/config"
	"github.com/HlibHav/support-kb/internal/engine"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.ContentDir = filepath.Join(root, "knowledge")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Embeddings.Provider = "static"
	require.NoError(t, os.MkdirAll(cfg.Paths.ContentDir, 0o755))

	eng, err := engine.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return NewServer(cfg.Server.Addr, eng), cfg
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func writeContent(t *testing.T, cfg *config.Config, rel, content string) {
	t.Helper()
	path := filepath.Join(cfg.Paths.ContentDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["embedder"])
}

func TestServer_StatsBeforeBuild(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode(t, rr)["indexed"])
}

func TestServer_BuildAndSearch(t *testing.T) {
	s, cfg := newTestServer(t)
	writeContent(t, cfg, "billing/refunds.md", "# Refunds\n\nRefunds take five business days.")

	rr := do(t, s, http.MethodPost, "/api/build", `{"type":"full"}`)
	require.Contains(t, []int{http.StatusOK, http.StatusAccepted}, rr.Code)

	// The corpus is tiny; wait for the synchronous response or poll.
	if rr.Code == http.StatusAccepted {
		require.Eventually(t, func() bool {
			stats := do(t, s, http.MethodGet, "/api/stats", "")
			return decode(t, stats)["indexed"] == true
		}, 5*time.Second, 50*time.Millisecond)
	}

	rr = do(t, s, http.MethodGet, "/api/search?q=refund&limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var set struct {
		Results []struct {
			Chunk struct {
				Text string `json:"text"`
			} `json:"chunk"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &set))
	require.NotEmpty(t, set.Results)

	rr = do(t, s, http.MethodGet, "/api/stats", "")
	body := decode(t, rr)
	assert.Equal(t, true, body["indexed"])

	rr = do(t, s, http.MethodGet, "/api/builds?limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_SearchValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/search?q=x&limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodGet, "/api/search?q=x&threshold=2.0", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr)["code"], "ERR_402")
}

func TestServer_BuildRejectsUnknownType(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/build", `{"type":"partial"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_BuildByIDNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/builds/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_ClearRequiresConfirm(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodDelete, "/api/knowledge-base", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodDelete, "/api/knowledge-base?confirm=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["cleared"])
}
