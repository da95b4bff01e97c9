package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

func newOnlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "online DEVICE",
		Short: "Mark a device online as if selected in the phone app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := phonePost("/set_device_online", protocol.DeviceNameRequest{DeviceName: args[0]})
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func newEnterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enter DEVICE",
		Short: "Record entering a device's control page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := phonePost("/enter_device", protocol.DeviceNameRequest{DeviceName: args[0]})
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Record opening the add-device detector",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := phonePost("/add_device_detector", struct{}{})
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}
