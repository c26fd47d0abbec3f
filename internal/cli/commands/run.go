package commands

import (
	"github.com/spf13/cobra"

	"github.com/tidemark-data/tidemark/internal/runner"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Job        string
	SkipTests  bool
	SkipChecks bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		Long: `Run ingestion, raw-data validation, every transformation layer and the
transformation tests as one pipeline.

A failed step skips its dependents; tests run regardless so a partial run
still records what it can.`,
		Example: `  # Run the full pipeline
  tidemark run

  # Run with a specific ingestion job
  tidemark run --job nightly

  # Run without the transformation tests
  tidemark run --skip-tests`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Job, "job", "j", "", "Ingestion job to run (default from config)")
	cmd.Flags().BoolVar(&opts.SkipTests, "skip-tests", false, "Skip the transformation tests")
	cmd.Flags().BoolVar(&opts.SkipChecks, "skip-checks", false, "Skip the raw-data freshness check")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cfg := ConfigFrom(cmd.Context())
	logger := LoggerFrom(cmd.Context())

	steps := []*runner.Step{ingestStep(cfg, opts.Job, logger)}
	after := "ingest"

	if !opts.SkipChecks && len(cfg.Warehouse.Tables) > 0 {
		vs := validateStep(cfg, logger)
		steps = append(steps, vs)
		after = vs.ID
	}

	steps = append(steps, transformSteps(cfg, after)...)

	if !opts.SkipTests {
		steps = append(steps, testStep(cfg))
	}

	return executeRun(cmd, &runner.Plan{Name: "pipeline", Steps: steps})
}
