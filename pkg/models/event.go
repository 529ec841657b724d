package models

import "time"

// ClinicalEvent is one normalized clinical occurrence. Events only exist
// in query form until a covariate table is materialized; this struct is
// the row shape of that intermediate relation.
type ClinicalEvent struct {
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	Code           string    `db:"code" json:"code"`
	Phenotype      string    `db:"phenotype" json:"phenotype"`
	EventDate      time.Time `db:"event_date" json:"event_date"`
	SourceName     string    `db:"source_name" json:"source_name"`
	SourcePriority int       `db:"source_priority" json:"source_priority"`
}
