package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// PipelineRun is the bookkeeping record for one covariate pipeline run.
type PipelineRun struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Status       string     `db:"status" json:"status"`
	TargetTable  string     `db:"target_table" json:"target_table"`
	Overwrite    bool       `db:"overwrite" json:"overwrite"`
	SubjectCount int        `db:"subject_count" json:"subject_count"`
	ResultCount  int        `db:"result_count" json:"result_count"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
