package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradewatch/internal/app"
	"tradewatch/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var (
		categories  []string
		topN        int
		maxItems    int
		recencyDays int
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single run and print its output",
		Long: `Executes one full pipeline run synchronously and prints the final
output document as JSON. Dry-run mode replays cached pages only and
never touches the network.`,
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
			defer application.Close()

			params := pipeline.RunParams{
				Categories:   categories,
				TopNPerQuery: topN,
				MaxItems:     maxItems,
				RecencyDays:  recencyDays,
				DryRun:       dryRun,
			}
			run, err := application.RunOnce(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("run %s failed: %w", run.ID, err)
			}

			output, err := application.Runs().GetOutput(cmd.Context(), run.ID)
			if err != nil {
				return fmt.Errorf("fetch output: %w", err)
			}
			encoded, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("encode output: %w", err)
			}
			cmd.Println(string(encoded))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&categories, "categories", nil, "challenge categories to search (default: all)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "search results per query")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "maximum items in the output")
	cmd.Flags().IntVar(&recencyDays, "recency-days", 0, "recency window for search results")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "replay cached pages only, no network fetches")
	return cmd
}
