package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssbridge/ssbridge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := ssbridge.NewBuilder().Build()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return app.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
