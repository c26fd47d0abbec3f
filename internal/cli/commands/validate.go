package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tidemark-data/tidemark/internal/validate"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check raw-data freshness in the warehouse",
		Long: `Query the warehouse for every configured raw table and report record
counts and extraction recency over the last seven days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			if len(cfg.Warehouse.Tables) == 0 {
				return fmt.Errorf("no warehouse tables configured")
			}

			db, err := validate.Open(cfg.Warehouse.DSN())
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := validate.New(db, cfg.Warehouse.Schema, logger).Check(cmd.Context(), cfg.Warehouse.Tables)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Table", "Records", "Latest Extraction", "Days"})

			stale := 0
			for _, res := range results {
				latest := "-"
				if res.LatestExtraction != nil {
					latest = res.LatestExtraction.Format("2006-01-02 15:04:05")
				}
				t.AppendRow(table.Row{res.Table, res.TotalRecords, latest, res.ExtractionDays})
				if !res.OK() {
					stale++
				}
			}
			t.Render()

			if stale > 0 {
				return fmt.Errorf("%d of %d raw tables have no recent data", stale, len(results))
			}
			return nil
		},
	}
}
