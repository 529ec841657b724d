package codelist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Convert(t *testing.T) {
	testCases := []struct {
		name       string
		value      string
		columnType ColumnType
		expected   any
	}{
		{
			name:       "character passes through unchanged",
			value:      "  E11.9 ",
			columnType: TypeCharacter,
			expected:   "  E11.9 ",
		},
		{
			name:       "numeric parses as float64",
			value:      "42.5",
			columnType: TypeNumeric,
			expected:   42.5,
		},
		{
			name:       "integer parses with surrounding whitespace",
			value:      " 17 ",
			columnType: TypeInteger,
			expected:   17,
		},
		{
			name:       "bigint parses beyond int32 range",
			value:      "9000000000",
			columnType: TypeBigInt,
			expected:   int64(9000000000),
		},
		{
			name:       "boolean parses true",
			value:      "true",
			columnType: TypeBoolean,
			expected:   true,
		},
		{
			name:       "date parses ISO layout",
			value:      "2019-03-01",
			columnType: TypeDate,
			expected:   time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "datetime parses RFC3339",
			value:      "2019-03-01T08:30:00Z",
			columnType: TypeDatetime,
			expected:   time.Date(2019, 3, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			name:       "datetime parses space-separated layout",
			value:      "2019-03-01 08:30:00",
			columnType: TypeDatetime,
			expected:   time.Date(2019, 3, 1, 8, 30, 0, 0, time.UTC),
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := Convert(testCase.value, testCase.columnType)

			require.NoError(t, err)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func Test_Convert_Errors(t *testing.T) {
	t.Run("bad value yields TypeConversionError", func(t *testing.T) {
		_, err := Convert("not-a-number", TypeInteger)

		require.Error(t, err)
		convErr, ok := err.(*TypeConversionError)
		require.True(t, ok)
		assert.Equal(t, "not-a-number", convErr.Value)
		assert.Equal(t, TypeInteger, convErr.Type)
		assert.Error(t, convErr.Unwrap())
	})

	t.Run("bad date yields TypeConversionError", func(t *testing.T) {
		_, err := Convert("01/03/2019", TypeDate)

		require.Error(t, err)
		_, ok := err.(*TypeConversionError)
		assert.True(t, ok)
	})

	t.Run("undeclared type yields UnknownTypeConversionError", func(t *testing.T) {
		_, err := Convert("anything", ColumnType("decimal"))

		require.Error(t, err)
		unknownErr, ok := err.(*UnknownTypeConversionError)
		require.True(t, ok)
		assert.Equal(t, ColumnType("decimal"), unknownErr.Type)
	})
}

func Test_Normalize(t *testing.T) {
	testCases := []struct {
		name     string
		system   CodingSystem
		code     string
		expected string
	}{
		{
			name:     "icd10 strips dot and uppercases",
			system:   CodingICD10,
			code:     "e11.9",
			expected: "E119",
		},
		{
			name:     "icd10 truncates to four characters",
			system:   CodingICD10,
			code:     "E11.92",
			expected: "E119",
		},
		{
			name:     "icd10 keeps three character codes",
			system:   CodingICD10,
			code:     "I10",
			expected: "I10",
		},
		{
			name:     "read v2 pads with dots to five characters",
			system:   CodingReadV2,
			code:     "C10",
			expected: "C10..",
		},
		{
			name:     "read v2 truncates to five characters",
			system:   CodingReadV2,
			code:     "C10E.00",
			expected: "C10E.",
		},
		{
			name:     "snomed trims whitespace only",
			system:   CodingSNOMED,
			code:     " 44054006 ",
			expected: "44054006",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, testCase.system.Normalize(testCase.code))
		})
	}
}

func Test_ParseCodingSystem(t *testing.T) {
	system, ok := ParseCodingSystem("ICD10")
	require.True(t, ok)
	assert.Equal(t, CodingICD10, system)

	_, ok = ParseCodingSystem("opcs4")
	assert.False(t, ok)
}
