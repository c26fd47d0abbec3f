package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tidemark-data/tidemark/internal/governance"
)

// NewGovernanceCommand creates the governance command group.
func NewGovernanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "governance",
		Short: "Inspect governance configuration",
	}

	cmd.AddCommand(newGovernanceResolveCommand())
	cmd.AddCommand(newGovernanceCheckCommand())

	return cmd
}

// newGovernanceResolveCommand creates the governance resolve command.
func newGovernanceResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <dataset>",
		Short: "Show the merged governance record for a dataset",
		Example: `  # Resolve a dataset identifier
  tidemark governance resolve datasets.weather.gold.weather_hourly`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			resolver, err := governance.LoadFile(cfg.GovernancePath(), logger)
			if err != nil {
				return err
			}

			res := resolver.Resolve(args[0])

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Field", "Value"})
			t.AppendRow(table.Row{"dataset", res.Dataset})
			t.AppendRow(table.Row{"matched_pattern", res.Pattern})
			for _, row := range recordRows(res.Record) {
				t.AppendRow(row)
			}
			t.Render()
			return nil
		},
	}
}

// newGovernanceCheckCommand creates the governance check command.
func newGovernanceCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the governance file",
		Long:  `Load the governance file and report whether it is well formed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			if _, err := governance.LoadFile(cfg.GovernancePath(), logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", cfg.GovernancePath())
			return nil
		},
	}
}

// recordRows flattens a governance record into display rows, skipping unset
// fields.
func recordRows(rec governance.Record) []table.Row {
	var rows []table.Row
	add := func(field, value string) {
		rows = append(rows, table.Row{field, value})
	}

	if rec.License != nil {
		add("license", *rec.License)
	}
	if rec.Attribution != nil {
		add("attribution", *rec.Attribution)
	}
	for _, owner := range rec.Ownership {
		add("ownership", fmt.Sprintf("%s (%s)", owner.Name, owner.Type))
	}
	if rec.AccessLevel != nil {
		add("access_level", string(*rec.AccessLevel))
	}
	if rec.AccessRequirements != nil {
		add("access_requirements", string(*rec.AccessRequirements))
	}
	if rec.Classification != nil {
		add("classification", string(*rec.Classification))
	}
	if len(rec.Tags) > 0 {
		add("tags", strings.Join(rec.Tags, ", "))
	}
	if rec.RetentionDays != nil {
		add("retention_days", strconv.Itoa(*rec.RetentionDays))
	}
	if rec.DocumentationURL != nil {
		add("documentation_url", *rec.DocumentationURL)
	}
	if rec.SourceSystem != nil {
		add("source_system", *rec.SourceSystem)
	}
	return rows
}
