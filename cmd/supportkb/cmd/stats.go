package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/HlibHav/support-kb/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics for the current snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := setupEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			stats := eng.Stats()

			if asJSON {
				out, err := json.MarshalIndent(map[string]any{
					"indexed":  stats != nil,
					"snapshot": stats,
				}, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(out))
				return nil
			}

			renderer := ui.NewRenderer(ui.StdoutIsTerminal())
			cmd.Print(renderer.Stats(stats))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	return cmd
}
