package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/HlibHav/support-kb/internal/build"
	"github.com/HlibHav/support-kb/internal/search"
	"github.com/HlibHav/support-kb/internal/snapshot"
	"github.com/HlibHav/support-kb/internal/store"
)

// snippetLength bounds the chunk excerpt shown per result.
const snippetLength = 200

// Renderer formats engine output as terminal text.
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a renderer. colored selects styled or plain output.
func NewRenderer(colored bool) *Renderer {
	return &Renderer{styles: NewStyles(colored)}
}

// Results renders a search response.
func (r *Renderer) Results(set *search.ResultSet) string {
	var b strings.Builder

	if set.Degraded {
		b.WriteString(r.styles.Warning.Render("note: semantic search unavailable, showing keyword matches only"))
		b.WriteString("\n\n")
	}

	if len(set.Results) == 0 {
		b.WriteString(r.styles.Dim.Render("No results (" + reasonText(set.Reason) + ")"))
		b.WriteString("\n")
		return b.String()
	}

	for i, res := range set.Results {
		header := fmt.Sprintf("%d. %s", i+1, res.Chunk.ID)
		b.WriteString(r.styles.Title.Render(header))
		b.WriteString("  ")
		b.WriteString(r.styles.Score.Render(fmt.Sprintf("score %.3f", res.Score)))
		if res.PhraseMatch {
			b.WriteString("  ")
			b.WriteString(r.styles.Success.Render("[phrase]"))
		}
		b.WriteString("\n")

		if res.Chunk.Category != "" {
			b.WriteString(r.styles.Path.Render("   " + res.Chunk.Category))
			b.WriteString(r.styles.Dim.Render(fmt.Sprintf("  (%s)", res.Source)))
			b.WriteString("\n")
		}

		b.WriteString("   " + snippet(res.Chunk.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

func reasonText(reason string) string {
	switch reason {
	case search.ReasonNoIndex:
		return "no index built yet, run: supportkb build"
	case search.ReasonEmptyQuery:
		return "empty query"
	case search.ReasonBelowThreshold:
		return "all matches fell below the threshold"
	default:
		return "no matches"
	}
}

// Stats renders snapshot statistics.
func (r *Renderer) Stats(stats *snapshot.Stats) string {
	if stats == nil {
		return r.styles.Dim.Render("No index built yet. Run: supportkb build") + "\n"
	}

	var b strings.Builder
	b.WriteString(r.styles.Title.Render("Knowledge base") + "\n")
	fmt.Fprintf(&b, "  version:    %d\n", stats.Version)
	fmt.Fprintf(&b, "  built:      %s\n", stats.BuiltAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  mode:       %s\n", stats.Mode)
	if stats.EmbedModel != "" {
		fmt.Fprintf(&b, "  model:      %s (%d dims)\n", stats.EmbedModel, stats.Dimensions)
	}
	fmt.Fprintf(&b, "  documents:  %d\n", stats.Documents)
	fmt.Fprintf(&b, "  chunks:     %d\n", stats.Chunks)
	fmt.Fprintf(&b, "  categories: %d\n", stats.Categories)
	return b.String()
}

// Build renders a completed build record.
func (r *Renderer) Build(rec *store.BuildRecord) string {
	var b strings.Builder

	switch rec.Status {
	case store.BuildStatusSucceeded:
		b.WriteString(r.styles.Success.Render("Build succeeded"))
	case store.BuildStatusCancelled:
		b.WriteString(r.styles.Warning.Render("Build cancelled"))
	default:
		b.WriteString(r.styles.Error.Render("Build " + rec.Status))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  id:        %s\n", rec.ID)
	fmt.Fprintf(&b, "  type:      %s\n", rec.Type)
	if rec.SnapshotVersion > 0 {
		fmt.Fprintf(&b, "  snapshot:  v%d\n", rec.SnapshotVersion)
	}
	fmt.Fprintf(&b, "  documents: %d\n", rec.Documents)
	fmt.Fprintf(&b, "  chunks:    %d\n", rec.Chunks)
	if rec.Type == store.BuildTypeIncremental {
		fmt.Fprintf(&b, "  created:   %d\n", rec.ChunksCreated)
		fmt.Fprintf(&b, "  retired:   %d\n", rec.ChunksRetired)
	}
	if rec.FinishedAt != nil {
		fmt.Fprintf(&b, "  duration:  %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	}
	if rec.Error != "" {
		b.WriteString(r.styles.Error.Render("  error: "+rec.Error) + "\n")
	}
	for _, problem := range rec.Problems {
		b.WriteString(r.styles.Warning.Render("  skipped: "+problem) + "\n")
	}
	return b.String()
}

// Progress renders a one-line build progress summary.
func (r *Renderer) Progress(p build.Progress) string {
	switch p.State {
	case build.StateIdle:
		return "idle\n"
	case build.StateDiscovering:
		return "discovering documents...\n"
	case build.StateProcessing:
		return fmt.Sprintf("processing %d/%d documents (%d chunks)\n",
			p.DocumentsDone, p.DocumentsTotal, p.ChunksIndexed)
	case build.StatePublishing:
		return "publishing snapshot...\n"
	default:
		return string(p.State) + "\n"
	}
}

// snippet returns the first snippetLength runes of text on one line.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}
