package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/pkg/sockpath"
)

var (
	socketPath string
	serverURL  string

	// Version is set by the main package via ldflags.
	Version = "dev"
)

// NewRootCmd creates the root arctl command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "arctl",
		Short:   "AR hub CLI — inspect arhubd and drive devices",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", sockpath.DefaultSocketPath(), "arhubd Unix socket path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "phone server base URL")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newTasksCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newTUICmd())
	rootCmd.AddCommand(newOnlineCmd())
	rootCmd.AddCommand(newEnterCmd())
	rootCmd.AddCommand(newDetectCmd())
	rootCmd.AddCommand(newSimulateCmd())

	return rootCmd
}
