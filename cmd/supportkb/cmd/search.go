package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HlibHav/support-kb/internal/engine"
	"github.com/HlibHav/support-kb/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var (
		limit     int
		threshold float64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := setupEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			set, err := eng.Search(cmd.Context(), strings.Join(args, " "), engine.SearchOptions{
				Limit:     limit,
				Threshold: threshold,
			})
			if err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(set, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(out))
				return nil
			}

			renderer := ui.NewRenderer(ui.StdoutIsTerminal())
			cmd.Print(renderer.Results(set))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum fused score, 0 to 1")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	return cmd
}
