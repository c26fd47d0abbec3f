package validate

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-data/tidemark/internal/testutil"
)

func TestCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	latest := time.Date(2026, 8, 23, 4, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total_records`).
		WillReturnRows(sqlmock.NewRows([]string{"total_records", "latest_extraction", "extraction_days"}).
			AddRow(int64(1200), latest, int64(7)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total_records`).
		WillReturnRows(sqlmock.NewRows([]string{"total_records", "latest_extraction", "extraction_days"}).
			AddRow(int64(0), nil, int64(0)))

	checker := New(db, "raw", testutil.NewTestLogger(t))
	results, err := checker.Check(context.Background(), []string{"observations", "stations"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "observations", results[0].Table)
	assert.Equal(t, int64(1200), results[0].TotalRecords)
	require.NotNil(t, results[0].LatestExtraction)
	assert.Equal(t, latest, *results[0].LatestExtraction)
	assert.True(t, results[0].OK())

	assert.Equal(t, "stations", results[1].Table)
	assert.False(t, results[1].OK(), "a table with no recent rows fails its check")
	assert.Nil(t, results[1].LatestExtraction)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total_records`).
		WillReturnError(context.DeadlineExceeded)

	checker := New(db, "raw", nil)
	_, err = checker.Check(context.Background(), []string{"observations"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw.observations")
}

func TestResult_Detail(t *testing.T) {
	latest := time.Date(2026, 8, 23, 4, 0, 0, 0, time.UTC)

	withTime := Result{Table: "obs", TotalRecords: 10, LatestExtraction: &latest, ExtractionDays: 2}
	assert.Contains(t, withTime.Detail(), "10 records")
	assert.Contains(t, withTime.Detail(), "2026-08-23")

	empty := Result{Table: "obs"}
	assert.Contains(t, empty.Detail(), "never")
}
