package codelist

import (
	"fmt"
	"strings"
)

// CodingSystem identifies the clinical coding system a codelist belongs
// to. Matching is exact string equality after normalization, so each
// system standardizes its code representation before staging.
type CodingSystem string

const (
	CodingICD10  CodingSystem = "icd10"
	CodingReadV2 CodingSystem = "read_v2"
	CodingSNOMED CodingSystem = "snomed"
)

// icd10Width is the fixed width ICD-10 codes are truncated to; source
// tables carry 3- and 4-character granularities.
const icd10Width = 4

// readV2Width is the fixed width of Read v2 codes, dot-padded.
const readV2Width = 5

// ParseCodingSystem validates a coding system name (typically a codelist
// file name).
func ParseCodingSystem(s string) (CodingSystem, bool) {
	switch CodingSystem(strings.ToLower(s)) {
	case CodingICD10:
		return CodingICD10, true
	case CodingReadV2:
		return CodingReadV2, true
	case CodingSNOMED:
		return CodingSNOMED, true
	}
	return "", false
}

// NormalizeSQL renders the same normalization as a SQL expression over a
// raw code column, so source codes match staged codelist codes inside the
// extraction join without a round-trip.
func (c CodingSystem) NormalizeSQL(expr string) string {
	expr = "BTRIM(" + expr + ")"

	switch c {
	case CodingICD10:
		return fmt.Sprintf("SUBSTRING(UPPER(REPLACE(%s, '.', '')) FROM 1 FOR %d)", expr, icd10Width)
	case CodingReadV2:
		return fmt.Sprintf("SUBSTRING(RPAD(%s, %d, '.') FROM 1 FOR %d)", expr, readV2Width, readV2Width)
	}

	return expr
}

// Normalize standardizes one code for exact-equality matching.
func (c CodingSystem) Normalize(code string) string {
	code = strings.TrimSpace(code)

	switch c {
	case CodingICD10:
		code = strings.ToUpper(strings.ReplaceAll(code, ".", ""))
		if len(code) > icd10Width {
			code = code[:icd10Width]
		}
	case CodingReadV2:
		for len(code) < readV2Width {
			code += "."
		}
		if len(code) > readV2Width {
			code = code[:readV2Width]
		}
	}

	return code
}
