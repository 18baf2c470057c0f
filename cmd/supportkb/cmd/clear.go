package cmd

import (
	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all index snapshots",
		Long: `Clear deletes every index snapshot. Source documents are untouched;
the index can be rebuilt with 'supportkb build'. Requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := setupEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.Clear(yes); err != nil {
				return err
			}
			cmd.Println("knowledge base cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
