// Package cohort reads the upstream cohort table. Cohort rows are
// produced outside fern and are read-only here.
package cohort

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

// Repository handles cohort reads.
type Repository struct {
	db       database.DB
	resolver warehouse.Resolver
	schema   string
	table    string
	logger   logging.Logger
}

func NewRepository(db database.DB, resolver warehouse.Resolver, schema, table string, logger logging.Logger) *Repository {
	return &Repository{
		db:       db,
		resolver: resolver,
		schema:   schema,
		table:    table,
		logger:   logger,
	}
}

func (r *Repository) identifier() (warehouse.QualifiedIdentifier, error) {
	return r.resolver.Resolve(r.table, r.schema)
}

// List returns cohort subjects ordered by subject id.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.Subject, error) {
	ctx, span := tracing.StartSpan(ctx, "cohort.Repository.List")
	defer span.End()

	id, err := r.identifier()
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve cohort table: %v", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("subject_id", "date_of_birth", "study_start_date", "study_end_date")
	sb.From(id.Quoted())
	sb.OrderBy("subject_id")
	if limit > 0 {
		sb.Limit(limit)
	}
	if offset > 0 {
		sb.Offset(offset)
	}

	query, args := sb.Build()
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", id.String()).Error("Failed to list cohort subjects")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list cohort subjects: %v", err)
	}
	return subjects, nil
}

// Get returns one cohort subject.
func (r *Repository) Get(ctx context.Context, subjectID string) (*models.Subject, error) {
	ctx, span := tracing.StartSpan(ctx, "cohort.Repository.Get")
	defer span.End()

	id, err := r.identifier()
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve cohort table: %v", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("subject_id", "date_of_birth", "study_start_date", "study_end_date")
	sb.From(id.Quoted())
	sb.Where(sb.Equal("subject_id", subjectID))

	query, args := sb.Build()
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("subject_id", subjectID).Error("Failed to get cohort subject")
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "subject %s not found", subjectID)
	}
	return &subject, nil
}

// Count returns the cohort size.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "cohort.Repository.Count")
	defer span.End()

	id, err := r.identifier()
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve cohort table: %v", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+id.Quoted()); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", id.String()).Error("Failed to count cohort subjects")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count cohort subjects: %v", err)
	}
	return count, nil
}
