package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/aggregate"
	"github.com/Ramsey-B/fern/pkg/codelist"
	"github.com/Ramsey-B/fern/pkg/extract"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

// setupWarehouse connects to the database named by FERN_TEST_DATABASE_URL
// and provisions an isolated schema that is dropped with the test.
func setupWarehouse(t *testing.T) (*sqlx.DB, *warehouse.Warehouse) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("FERN_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Database not configured")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(context.Background()))

	schema := "fern_it_" + uuid.New().String()[:8]
	wh := warehouse.New(db, warehouse.NewResolver(warehouse.FoldLower), schema, logging.NewNop())

	require.NoError(t, wh.EnsureSchema(context.Background(), schema, false))
	t.Cleanup(func() {
		db.ExecContext(context.Background(), fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, schema))
	})

	return db, wh
}

func dateOf(t *testing.T, v any) string {
	t.Helper()
	ts, ok := v.(time.Time)
	require.True(t, ok, "expected a date value, got %T", v)
	return ts.Format("2006-01-02")
}

// Runs the full composition against real data: two prioritized sources,
// a staged codelist, first-event resolution and the pivot, materialized
// and read back.
//
// Subject 1 carries a same-date event in both sources plus a same-date
// sibling code in source_a, subject 2 carries events on and just outside
// both window boundaries, subject 3 has no events inside the window.
func TestCovariatePipeline_Postgres(t *testing.T) {
	db, wh := setupWarehouse(t)
	ctx := context.Background()
	schema := wh.Schema()

	exec := func(format string, args ...any) {
		t.Helper()
		_, err := db.ExecContext(ctx, fmt.Sprintf(format, args...))
		require.NoError(t, err)
	}

	exec(`CREATE TABLE %q.cohort (subject_id BIGINT PRIMARY KEY, date_of_birth DATE NOT NULL, study_start_date DATE NOT NULL, study_end_date DATE)`, schema)
	exec(`CREATE TABLE %q.codelists (code TEXT NOT NULL, phenotype TEXT NOT NULL, coding_system TEXT NOT NULL)`, schema)
	exec(`CREATE TABLE %q.source_a (subject_id BIGINT, code TEXT, event_dt DATE)`, schema)
	exec(`CREATE TABLE %q.source_b (subject_id BIGINT, code TEXT, event_dt DATE)`, schema)

	exec(`INSERT INTO %q.cohort VALUES
		(1, '1990-01-01', '2021-01-01', '2022-01-01'),
		(2, '1990-01-01', '2021-01-01', '2022-01-01'),
		(3, '1990-01-01', '2021-01-01', '2022-01-01')`, schema)

	exec(`INSERT INTO %q.source_a VALUES
		(1, 'I10', '2020-01-05'),
		(1, 'I109', '2020-01-05'),
		(2, 'E11.9', '1989-12-31'),
		(2, 'E11.9', '1990-01-01'),
		(2, 'I10', '2021-01-01'),
		(3, 'I10', '2021-01-02')`, schema)
	exec(`INSERT INTO %q.source_b VALUES
		(1, 'I109', '2020-01-05')`, schema)

	logger := logging.NewNop()
	loader := codelist.NewLoader(db, wh, "codelists", logger)
	codes, err := loader.Stage(ctx, []models.CodelistEntry{
		{Code: "I10", Phenotype: "hypertension", CodingSystem: string(codelist.CodingICD10)},
		{Code: "I109", Phenotype: "hypertension", CodingSystem: string(codelist.CodingICD10)},
		{Code: "E119", Phenotype: "diabetes", CodingSystem: string(codelist.CodingICD10)},
	})
	require.NoError(t, err)

	extractor := extract.New(wh, logger)
	mapping := extract.ColumnMapping{SubjectID: "subject_id", Code: "code", EventDate: "event_dt"}

	sourceA, err := wh.Table("source_a")
	require.NoError(t, err)
	sourceB, err := wh.Table("source_b")
	require.NoError(t, err)

	eventsA, err := extractor.Events(sourceA, codes, mapping, codelist.CodingICD10, "source_a", 1)
	require.NoError(t, err)
	eventsB, err := extractor.Events(sourceB, codes, mapping, codelist.CodingICD10, "source_b", 2)
	require.NoError(t, err)

	allEvents, err := warehouse.UnionAll(eventsA, eventsB)
	require.NoError(t, err)

	subjects, err := wh.Table("cohort")
	require.NoError(t, err)

	covariates, err := aggregate.New(wh, logger).Covariates(allEvents, subjects, []string{"hypertension", "diabetes"})
	require.NoError(t, err)

	handle, err := wh.Materialize(ctx, covariates, "covariates", warehouse.MaterializeOptions{})
	require.NoError(t, err)

	rows, err := handle.Relation().CollectMaps(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3, "one row per cohort subject")

	bySubject := map[int64]map[string]any{}
	for _, row := range rows {
		id, ok := row["subject_id"].(int64)
		require.True(t, ok, "expected an integer subject_id, got %T", row["subject_id"])
		bySubject[id] = row
	}

	t.Run("same-date ties resolve by priority then code", func(t *testing.T) {
		row := bySubject[1]
		require.NotNil(t, row)
		assert.EqualValues(t, 1, row["hypertension_flag"])
		assert.Equal(t, "2020-01-05", dateOf(t, row["hypertension_date"]))
		assert.Equal(t, "I10", row["hypertension_code"])
		assert.Equal(t, "source_a", row["hypertension_source"])
	})

	t.Run("window boundaries are inclusive on both ends", func(t *testing.T) {
		row := bySubject[2]
		require.NotNil(t, row)
		assert.Equal(t, "1990-01-01", dateOf(t, row["diabetes_date"]), "day before birth excluded, birth date included")
		assert.Equal(t, "2021-01-01", dateOf(t, row["hypertension_date"]), "study start date included")
	})

	t.Run("a subject with no events inside the window still gets a row", func(t *testing.T) {
		row := bySubject[3]
		require.NotNil(t, row)
		assert.Nil(t, row["hypertension_flag"], "day after study start excluded")
		assert.Nil(t, row["hypertension_date"])
		assert.Nil(t, row["hypertension_code"])
		assert.Nil(t, row["hypertension_source"])
		assert.Nil(t, row["diabetes_flag"])
	})

	t.Run("re-materializing honors the overwrite policy", func(t *testing.T) {
		_, err := wh.Materialize(ctx, covariates, "covariates", warehouse.MaterializeOptions{})
		require.Error(t, err)
		assert.True(t, warehouse.IsTableExists(err))

		again, err := wh.Materialize(ctx, covariates, "covariates", warehouse.MaterializeOptions{Overwrite: true})
		require.NoError(t, err)
		count, err := again.Relation().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}
