package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ManifestFileName is the per-snapshot manifest file.
const ManifestFileName = "manifest.json"

// Manifest records what a snapshot directory should contain. Loads
// verify the live indexes against it; a mismatch means the directory is
// corrupt and must not be served.
type Manifest struct {
	Version    int       `json:"version"`
	BuiltAt    time.Time `json:"built_at"`
	Mode       Mode      `json:"mode"`
	EmbedModel string    `json:"embed_model,omitempty"`
	Dimensions int       `json:"dimensions,omitempty"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
}

// WriteManifest writes the manifest to path via temp file and rename.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// ReadManifest reads and decodes a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
