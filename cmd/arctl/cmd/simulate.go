package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JuweiLin/ARProject/pkg/device"
)

func newSimulateCmd() *cobra.Command {
	var cfg device.Config

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated lighting device against arhubd",
		Long: `Connects to the device server, registers under --name, answers heartbeats
with its current state and applies every command it receives.

Examples:
  arctl simulate --name Rectangle
  arctl simulate --url ws://10.0.0.5:8765/ --name Circle --color Red --brightness 40`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(
				zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339},
			).With().Timestamp().Logger()

			d, err := device.Connect(cfg, logger)
			if err != nil {
				return err
			}
			d.OnCommand(func(command string) {
				b, c := d.State()
				fmt.Printf("%s: %q -> brightness=%d color=%s\n", cfg.Name, command, b, c)
			})

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := d.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.URL, "url", "ws://127.0.0.1:8765/", "device server websocket URL")
	cmd.Flags().StringVar(&cfg.Name, "name", "Rectangle", "device name to register")
	cmd.Flags().IntVar(&cfg.Brightness, "brightness", 0, "initial brightness")
	cmd.Flags().StringVar(&cfg.Color, "color", "off", "initial color")

	return cmd
}
