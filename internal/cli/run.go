package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE...",
		Short: "Execute BQL script files in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openDB()
			if err != nil {
				return err
			}
			defer b.Close()

			for _, path := range args {
				text, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := b.ExecuteScript(cmd.Context(), string(text)); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}
}
