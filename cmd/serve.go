package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/caresched/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and metrics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			return svc.Run(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
