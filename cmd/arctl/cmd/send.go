package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/internal/dispatch"
)

func newSendCmd() *cobra.Command {
	var device, command string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a command to a device and print the hub's reply",
		Long: `Posts {"device","command"} to the phone server's /command endpoint and
prints the message field of the reply, whatever the HTTP status.

Examples:
  arctl send --device Rectangle --command "Blue 80"
  arctl send --server http://10.0.0.5:8080 --device Circle --command "off"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dispatch.NewClient(serverURL, nil)
			if err != nil {
				return err
			}
			d := dispatch.New(client,
				dispatch.Fields{dispatch.FieldDevice: device, dispatch.FieldCommand: command},
				dispatch.NotifierFunc(func(msg string) {
					fmt.Fprintln(cmd.OutOrStdout(), msg)
				}),
			)
			return d.Dispatch(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "device name")
	cmd.Flags().StringVar(&command, "command", "", `command, e.g. "Blue 80"`)

	return cmd
}
