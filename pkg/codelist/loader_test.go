package codelist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
)

func Test_Loader_Parse(t *testing.T) {
	loader := NewLoader(nil, nil, "codelists", logging.NewNop())

	t.Run("parses and normalizes rows", func(t *testing.T) {
		input := "code,phenotype\ne11.9,diabetes\nE11.92,diabetes\nI10,hypertension\n"

		entries, err := loader.parse(strings.NewReader(input), "icd10.csv", CodingICD10)

		require.NoError(t, err)
		assert.Equal(t, []models.CodelistEntry{
			{Code: "E119", Phenotype: "diabetes", CodingSystem: "icd10"},
			{Code: "E119", Phenotype: "diabetes", CodingSystem: "icd10"},
			{Code: "I10", Phenotype: "hypertension", CodingSystem: "icd10"},
		}, entries)
	})

	t.Run("same code may map to multiple phenotypes", func(t *testing.T) {
		input := "code,phenotype\nI10,hypertension\nI10,cardiovascular\n"

		entries, err := loader.parse(strings.NewReader(input), "icd10.csv", CodingICD10)

		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "hypertension", entries[0].Phenotype)
		assert.Equal(t, "cardiovascular", entries[1].Phenotype)
	})

	t.Run("missing column yields SchemaMismatchError", func(t *testing.T) {
		input := "code\nI10\n"

		_, err := loader.parse(strings.NewReader(input), "icd10.csv", CodingICD10)

		require.Error(t, err)
		mismatch, ok := err.(*SchemaMismatchError)
		require.True(t, ok)
		assert.Equal(t, "icd10.csv", mismatch.File)
		assert.Equal(t, []string{"phenotype"}, mismatch.Missing)
		assert.Empty(t, mismatch.Extra)
	})

	t.Run("unexpected column yields SchemaMismatchError", func(t *testing.T) {
		input := "code,phenotype,priority\nI10,hypertension,1\n"

		_, err := loader.parse(strings.NewReader(input), "icd10.csv", CodingICD10)

		require.Error(t, err)
		mismatch, ok := err.(*SchemaMismatchError)
		require.True(t, ok)
		assert.Equal(t, []string{"priority"}, mismatch.Extra)
	})

	t.Run("header comparison ignores case and whitespace", func(t *testing.T) {
		input := "Code, Phenotype\nI10,hypertension\n"

		entries, err := loader.parse(strings.NewReader(input), "icd10.csv", CodingICD10)

		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("empty code is rejected", func(t *testing.T) {
		input := "code,phenotype\n,hypertension\n"

		_, err := loader.parse(strings.NewReader(input), "icd10.csv", CodingICD10)

		assert.Error(t, err)
	})
}

func Test_Phenotypes(t *testing.T) {
	entries := []models.CodelistEntry{
		{Code: "C10..", Phenotype: "diabetes", CodingSystem: "read_v2"},
		{Code: "E119", Phenotype: "diabetes", CodingSystem: "icd10"},
		{Code: "I10", Phenotype: "hypertension", CodingSystem: "icd10"},
		{Code: "F20", Phenotype: "schizophrenia", CodingSystem: "icd10"},
	}

	assert.Equal(t, []string{"diabetes", "hypertension", "schizophrenia"}, Phenotypes(entries))
}
