package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.DevicesResponse
			if err := apiGet("/api/v1/devices", &resp); err != nil {
				return err
			}

			if len(resp.Devices) == 0 {
				fmt.Println("No devices connected.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATUS\tBRIGHTNESS\tCOLOR")
			for _, d := range resp.Devices {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.DeviceName, d.Status, d.Brightness, d.Color)
			}
			w.Flush()
			return nil
		},
	}
}
