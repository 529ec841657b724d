package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/codelist"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

func newWarehouse() *warehouse.Warehouse {
	return warehouse.New(nil, warehouse.NewResolver(warehouse.FoldLower), "analysis", logging.NewNop())
}

func Test_Extractor_Events(t *testing.T) {
	wh := newWarehouse()
	extractor := New(wh, logging.NewNop())

	source, err := wh.Table("gp_clinical")
	require.NoError(t, err)
	codes, err := wh.Table("codelists")
	require.NoError(t, err)

	mapping := ColumnMapping{
		SubjectID: "eid",
		Code:      "read_2",
		EventDate: "event_dt",
	}

	t.Run("projects the shared event shape", func(t *testing.T) {
		rel, err := extractor.Events(source, codes, mapping, codelist.CodingSNOMED, "primary_care", 1)

		require.NoError(t, err)
		stmt := rel.SQL()
		assert.Contains(t, stmt, `src."eid" AS subject_id`)
		assert.Contains(t, stmt, `BTRIM(src."read_2") AS code`)
		assert.Contains(t, stmt, "cl.phenotype AS phenotype")
		assert.Contains(t, stmt, `src."event_dt" AS event_date`)
		assert.Contains(t, stmt, "'primary_care' AS source_name")
		assert.Contains(t, stmt, "1 AS source_priority")
	})

	t.Run("normalizes read v2 codes in the join", func(t *testing.T) {
		rel, err := extractor.Events(source, codes, mapping, codelist.CodingReadV2, "primary_care", 1)

		require.NoError(t, err)
		stmt := rel.SQL()
		assert.Contains(t, stmt, `SUBSTRING(RPAD(BTRIM(src."read_2"), 5, '.') FROM 1 FOR 5) AS code`)
		assert.Contains(t, stmt, `SUBSTRING(RPAD(BTRIM(src."read_2"), 5, '.') FROM 1 FOR 5) = cl.code`)
	})

	t.Run("normalizes icd10 codes in the join", func(t *testing.T) {
		icd10Mapping := ColumnMapping{SubjectID: "eid", Code: "diag_icd10", EventDate: "epistart"}

		rel, err := extractor.Events(source, codes, icd10Mapping, codelist.CodingICD10, "hospital", 2)

		require.NoError(t, err)
		stmt := rel.SQL()
		assert.Contains(t, stmt, `SUBSTRING(UPPER(REPLACE(BTRIM(src."diag_icd10"), '.', '')) FROM 1 FOR 4) = cl.code`)
	})

	t.Run("restricts the codelist to the source coding system", func(t *testing.T) {
		rel, err := extractor.Events(source, codes, mapping, codelist.CodingReadV2, "primary_care", 1)

		require.NoError(t, err)
		assert.Contains(t, rel.SQL(), "cl.coding_system = 'read_v2'")
	})

	t.Run("nests both relations as subqueries", func(t *testing.T) {
		rel, err := extractor.Events(source, codes, mapping, codelist.CodingReadV2, "primary_care", 1)

		require.NoError(t, err)
		stmt := rel.SQL()
		assert.Contains(t, stmt, `(SELECT * FROM "analysis"."gp_clinical") AS src`)
		assert.Contains(t, stmt, `(SELECT * FROM "analysis"."codelists") AS cl`)
	})

	t.Run("folds mapped column names per the warehouse convention", func(t *testing.T) {
		upper := warehouse.New(nil, warehouse.NewResolver(warehouse.FoldUpper), "ANALYSIS", logging.NewNop())
		upperExtractor := New(upper, logging.NewNop())

		upperSource, err := upper.Table("hesin_diag")
		require.NoError(t, err)
		upperCodes, err := upper.Table("codelists")
		require.NoError(t, err)

		rel, err := upperExtractor.Events(upperSource, upperCodes, mapping, codelist.CodingICD10, "hospital", 2)

		require.NoError(t, err)
		assert.Contains(t, rel.SQL(), `src."EID" AS subject_id`)
	})

	t.Run("rejects an incomplete column mapping", func(t *testing.T) {
		_, err := extractor.Events(source, codes, ColumnMapping{SubjectID: "eid"}, codelist.CodingReadV2, "primary_care", 1)

		assert.Error(t, err)
	})

	t.Run("rejects unbound relations", func(t *testing.T) {
		_, err := extractor.Events(warehouse.Relation{}, codes, mapping, codelist.CodingReadV2, "primary_care", 1)

		assert.Error(t, err)
	})
}
