package models

import "time"

// Subject is one cohort member. Subjects are produced by the upstream
// cohort definition and are read-only to fern.
type Subject struct {
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	DateOfBirth    time.Time `db:"date_of_birth" json:"date_of_birth"`
	StudyStartDate time.Time `db:"study_start_date" json:"study_start_date"`
	StudyEndDate   time.Time `db:"study_end_date" json:"study_end_date"`
}
