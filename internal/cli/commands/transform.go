package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidemark-data/tidemark/internal/runner"
)

// TransformOptions holds options for the transform command.
type TransformOptions struct {
	Layer     string
	Operation string
	SkipTests bool
}

// NewTransformCommand creates the transform command.
func NewTransformCommand() *cobra.Command {
	opts := &TransformOptions{}

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Run transformation layers or a single operation",
		Long: `Run the configured transformation layers in order, a single layer, or an
arbitrary operation of the transformation tool.`,
		Example: `  # Run all layers and the tests
  tidemark transform

  # Run one layer only
  tidemark transform --layer gold

  # Run a tool operation
  tidemark transform --operation refresh_snapshots`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransform(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Layer, "layer", "l", "", "Run a single layer by name")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "Run a single tool operation")
	cmd.Flags().BoolVar(&opts.SkipTests, "skip-tests", false, "Skip the transformation tests")

	return cmd
}

func runTransform(cmd *cobra.Command, opts *TransformOptions) error {
	cfg := ConfigFrom(cmd.Context())

	if opts.Operation != "" {
		step := runner.OperationStep(
			cfg.Transform.Binary, cfg.Transform.ProjectDir, cfg.Transform.ProfilesDir,
			opts.Operation, nil,
		)
		return executeRun(cmd, &runner.Plan{Name: "operation", Steps: []*runner.Step{step}})
	}

	var steps []*runner.Step
	if opts.Layer != "" {
		layer, ok := cfg.Layer(opts.Layer)
		if !ok {
			return fmt.Errorf("unknown transform layer %q", opts.Layer)
		}
		steps = append(steps, runner.TransformStep(
			cfg.Transform.Binary, cfg.Transform.ProjectDir, cfg.Transform.ProfilesDir,
			layer.Name, nil, nil, layer.Datasets,
		))
	} else {
		steps = transformSteps(cfg, "")
	}

	if !opts.SkipTests {
		steps = append(steps, testStep(cfg))
	}

	return executeRun(cmd, &runner.Plan{Name: "transform", Steps: steps})
}
