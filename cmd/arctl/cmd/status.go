package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show arhubd status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp protocol.StatusResponse
			if err := apiGet("/api/v1/status", &resp); err != nil {
				return err
			}

			fmt.Printf("Status:          %s\n", resp.Status)
			fmt.Printf("Uptime:          %s\n", resp.Uptime)
			fmt.Printf("NATS Running:    %v\n", resp.NATSRunning)
			fmt.Printf("Started At:      %s\n", resp.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Experiment From: %s\n", resp.ExperimentStarted.Format("2006-01-02 15:04:05"))
			fmt.Printf("Devices:         %d\n", resp.DeviceCount)
			fmt.Printf("Browsers:        %d\n", resp.BrowserClients)
			fmt.Printf("Headsets:        %d\n", resp.HeadsetClients)
			return nil
		},
	}
}
