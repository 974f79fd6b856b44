package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradewatch/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and run workers",
		Long: `Starts the HTTP server and the background workers that execute
queued runs. Runs are submitted with POST /runs and tracked with
GET /runs/{run_id}.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() {
				if syncErr := logger.Sync(); syncErr != nil {
					logger.Debug("logger sync failed", zap.Error(syncErr))
				}
			}()

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			return application.Run(cmd.Context())
		},
	}
}
