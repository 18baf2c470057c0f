// Package source reads raw documents from a content directory and
// normalizes them into uniform Document records. Downstream components
// never branch on the source format.
package source

import (
	"time"
)

// Document is one logical source document, immutable for a build cycle.
type Document struct {
	// ID is a stable identifier derived from the relative path.
	ID string

	// Title is the document title (file name without extension).
	Title string

	// Text is the extracted plain text.
	Text string

	// SourcePath is the path relative to the content root.
	SourcePath string

	// Category is a hint derived from the top-level content subdirectory,
	// "General" for documents at the root.
	Category string

	// ContentHash is the hex SHA-256 of the raw file bytes. A hash change
	// triggers reprocessing on incremental builds.
	ContentHash string

	// ModTime is the file's last modification time.
	ModTime time.Time
}

// Problem records a per-document failure during discovery.
// Problems are reported to the build record; they never abort a build.
type Problem struct {
	Path string
	Code string
	Err  error
}

// DefaultCategory is assigned to documents directly under the content root.
const DefaultCategory = "General"
