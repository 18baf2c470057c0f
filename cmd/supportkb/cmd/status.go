package cmd

import (
	"github.com/spf13/cobra"

	"github.com/HlibHav/support-kb/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent builds and current build progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := setupEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			renderer := ui.NewRenderer(ui.StdoutIsTerminal())
			cmd.Print(renderer.Progress(eng.Progress()))

			records, err := eng.RecentBuilds(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("no builds yet")
				return nil
			}
			for _, rec := range records {
				cmd.Print(renderer.Build(rec))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of builds to show")
	return cmd
}
