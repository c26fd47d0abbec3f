// Package validate checks ingested raw tables for freshness. It runs after
// the ingestion step and feeds the assertions facet on the validation step's
// lineage event.
package validate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// Result is the freshness summary for one raw table.
type Result struct {
	Table            string
	TotalRecords     int64
	LatestExtraction *time.Time
	ExtractionDays   int64
}

// OK reports whether the table passed the check.
func (r Result) OK() bool { return r.TotalRecords > 0 }

// Detail is a human-readable summary for failure reporting.
func (r Result) Detail() string {
	latest := "never"
	if r.LatestExtraction != nil {
		latest = r.LatestExtraction.Format(time.RFC3339)
	}
	return fmt.Sprintf("%d records over %d extraction days, latest %s",
		r.TotalRecords, r.ExtractionDays, latest)
}

// Checker runs freshness queries against the warehouse.
type Checker struct {
	db     *sql.DB
	schema string
	logger *slog.Logger
}

// Open connects to the warehouse via the pgx driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse connection: %w", err)
	}
	return db, nil
}

// New creates a checker over an open warehouse connection.
func New(db *sql.DB, schema string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Checker{db: db, schema: schema, logger: logger}
}

// Check summarizes each table's last seven days of synced rows. A table with
// zero recent records fails its check; query errors fail the whole call.
func (c *Checker) Check(ctx context.Context, tables []string) ([]Result, error) {
	results := make([]Result, 0, len(tables))

	for _, table := range tables {
		query := fmt.Sprintf(`
			SELECT COUNT(*) AS total_records,
			       MAX(synced_at) AS latest_extraction,
			       COUNT(DISTINCT DATE(synced_at)) AS extraction_days
			FROM %s
			WHERE synced_at >= CURRENT_DATE - INTERVAL '7 days'`,
			pgx.Identifier{c.schema, table}.Sanitize())

		var res Result
		res.Table = table

		var latest sql.NullTime
		row := c.db.QueryRowContext(ctx, query)
		if err := row.Scan(&res.TotalRecords, &latest, &res.ExtractionDays); err != nil {
			return nil, fmt.Errorf("validating %s.%s: %w", c.schema, table, err)
		}
		if latest.Valid {
			t := latest.Time
			res.LatestExtraction = &t
		}

		c.logger.Info("raw table checked",
			"table", table,
			"total_records", res.TotalRecords,
			"extraction_days", res.ExtractionDays)

		results = append(results, res)
	}

	return results, nil
}
