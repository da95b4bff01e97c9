package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/internal/dispatch"
	"github.com/JuweiLin/ARProject/internal/tui"
)

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive command form",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dispatch.NewClient(serverURL, nil)
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), client)
		},
	}
}
