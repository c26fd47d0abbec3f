package commands

import (
	"github.com/spf13/cobra"

	"github.com/tidemark-data/tidemark/internal/runner"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	var job string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the ingestion step only",
		Long: `Run a job of the external ingestion tool and, when raw tables are
configured, the raw-data freshness check.`,
		Example: `  # Run the default ingestion job
  tidemark ingest

  # Run a named job
  tidemark ingest --job nightly`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			steps := []*runner.Step{ingestStep(cfg, job, logger)}
			if len(cfg.Warehouse.Tables) > 0 {
				steps = append(steps, validateStep(cfg, logger))
			}
			return executeRun(cmd, &runner.Plan{Name: "ingest", Steps: steps})
		},
	}

	cmd.Flags().StringVarP(&job, "job", "j", "", "Ingestion job to run (default from config)")

	return cmd
}
