// Package runlog persists pipeline run bookkeeping records.
package runlog

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const runColumns = "id, status, target_table, overwrite, subject_count, result_count, error_message, started_at, completed_at, created_at, updated_at"

// Repository handles pipeline run persistence.
type Repository struct {
	db     database.DB
	logger logging.Logger
}

func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new queued run record.
func (r *Repository) Create(ctx context.Context, targetTable string, overwrite bool) (*models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	run := models.PipelineRun{
		ID:          uuid.New(),
		Status:      models.RunStatusQueued,
		TargetTable: targetTable,
		Overwrite:   overwrite,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ib := database.NewInsertBuilder().
		InsertInto("pipeline_runs").
		Cols("id", "status", "target_table", "overwrite", "created_at", "updated_at").
		Values(run.ID, run.Status, run.TargetTable, run.Overwrite, run.CreatedAt, run.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("target_table", targetTable).Error("Failed to create pipeline run")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create pipeline run: %v", err)
	}

	return &run, nil
}

// MarkRunning transitions a run to running and stamps the start time.
func (r *Repository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.MarkRunning")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update("pipeline_runs")
	ub.Set(
		ub.Assign("status", models.RunStatusRunning),
		ub.Assign("started_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	return r.exec(ctx, ub, id, "mark run running")
}

// MarkCompleted records a successful run with its subject and result counts.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, subjectCount, resultCount int) error {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.MarkCompleted")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update("pipeline_runs")
	ub.Set(
		ub.Assign("status", models.RunStatusCompleted),
		ub.Assign("subject_count", subjectCount),
		ub.Assign("result_count", resultCount),
		ub.Assign("completed_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	return r.exec(ctx, ub, id, "mark run completed")
}

// MarkFailed records a failed run with its error message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.MarkFailed")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update("pipeline_runs")
	ub.Set(
		ub.Assign("status", models.RunStatusFailed),
		ub.Assign("error_message", message),
		ub.Assign("completed_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	return r.exec(ctx, ub, id, "mark run failed")
}

func (r *Repository) exec(ctx context.Context, ub *database.UpdateBuilder, id uuid.UUID, action string) error {
	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("run_id", id.String()).Error("Failed to " + action)
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to %s: %v", action, err)
	}
	return nil
}

// Get returns one run by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(runColumns)
	sb.From("pipeline_runs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var run models.PipelineRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("run_id", id.String()).Error("Failed to get pipeline run")
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "run %s not found", id)
	}
	return &run, nil
}

// List returns recent runs, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.List")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(runColumns)
	sb.From("pipeline_runs")
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var runs []models.PipelineRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pipeline runs")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list pipeline runs: %v", err)
	}
	return runs, nil
}
