package pipeline

import (
	"github.com/Ramsey-B/fern/pkg/codelist"
	"github.com/Ramsey-B/fern/pkg/extract"
)

// SourceSpec describes one event source table: where it lives, which
// coding system its codes use, which columns carry the event fields, and
// its priority when events tie on date. Lower priority wins.
type SourceSpec struct {
	Name         string
	Table        string
	CodingSystem codelist.CodingSystem
	Priority     int

	// Mappings lists the column sets to extract. Sources carrying several
	// code columns per row (for example primary and secondary hospital
	// diagnoses) declare one mapping per column; their extractions are
	// unioned.
	Mappings []extract.ColumnMapping
}

// DefaultSources returns the built-in source registry: primary care takes
// precedence over hospital admissions on date ties.
func DefaultSources(primaryCareTable, hospitalTable string) []SourceSpec {
	return []SourceSpec{
		{
			Name:         "primary_care",
			Table:        primaryCareTable,
			CodingSystem: codelist.CodingReadV2,
			Priority:     1,
			Mappings: []extract.ColumnMapping{
				{SubjectID: "subject_id", Code: "read_2", EventDate: "event_dt"},
			},
		},
		{
			Name:         "hospital",
			Table:        hospitalTable,
			CodingSystem: codelist.CodingICD10,
			Priority:     2,
			Mappings: []extract.ColumnMapping{
				{SubjectID: "subject_id", Code: "diag_icd10", EventDate: "admission_date"},
				{SubjectID: "subject_id", Code: "diag_icd10_secondary", EventDate: "admission_date"},
			},
		},
	}
}
