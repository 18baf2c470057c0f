package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HlibHav/support-kb/internal/store"
	"github.com/HlibHav/support-kb/internal/ui"
)

func newBuildCmd() *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the search index from the content directory",
		Long: `Build discovers documents under the content directory, chunks and
embeds them, and publishes a new index snapshot. A full build indexes
everything from scratch; --incremental reindexes only documents whose
content changed since the current snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := setupEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			// Ctrl-C cancels at the next batch boundary; the published
			// snapshot is never touched.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			buildType := store.BuildTypeFull
			if incremental {
				buildType = store.BuildTypeIncremental
			}

			rec, err := eng.Build(ctx, buildType)
			if rec != nil {
				renderer := ui.NewRenderer(ui.StdoutIsTerminal())
				cmd.Print(renderer.Build(rec))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "reindex only changed documents")
	return cmd
}
