// Package covariate reads materialized covariate tables. Column sets vary
// per run (one group per phenotype), so rows are returned as generic maps.
package covariate

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

// Repository handles covariate table reads.
type Repository struct {
	wh     *warehouse.Warehouse
	table  string
	logger logging.Logger
}

func NewRepository(wh *warehouse.Warehouse, table string, logger logging.Logger) *Repository {
	return &Repository{
		wh:     wh,
		table:  table,
		logger: logger,
	}
}

// List returns covariate rows ordered by subject id.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.CovariateRow, error) {
	ctx, span := tracing.StartSpan(ctx, "covariate.Repository.List")
	defer span.End()

	id, err := r.wh.Resolver().Resolve(r.table, r.wh.Schema())
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve covariate table: %v", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*")
	sb.From(id.Quoted())
	sb.OrderBy("subject_id")
	if limit > 0 {
		sb.Limit(limit)
	}
	if offset > 0 {
		sb.Offset(offset)
	}

	query, args := sb.Build()
	stmt, err := sqlbuilder.PostgreSQL.Interpolate(query, args)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to build covariate query: %v", err)
	}

	rows, err := r.wh.FromSQL(stmt).CollectMaps(ctx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", id.String()).Error("Failed to list covariate rows")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list covariate rows: %v", err)
	}

	results := make([]models.CovariateRow, 0, len(rows))
	for _, row := range rows {
		results = append(results, models.CovariateRow(row))
	}
	return results, nil
}

// Get returns one subject's covariate row.
func (r *Repository) Get(ctx context.Context, subjectID string) (models.CovariateRow, error) {
	ctx, span := tracing.StartSpan(ctx, "covariate.Repository.Get")
	defer span.End()

	id, err := r.wh.Resolver().Resolve(r.table, r.wh.Schema())
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve covariate table: %v", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*")
	sb.From(id.Quoted())
	sb.Where(sb.Equal("subject_id", subjectID))

	query, args := sb.Build()
	stmt, err := sqlbuilder.PostgreSQL.Interpolate(query, args)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to build covariate query: %v", err)
	}

	rows, err := r.wh.FromSQL(stmt).CollectMaps(ctx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("subject_id", subjectID).Error("Failed to get covariate row")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get covariate row: %v", err)
	}
	if len(rows) == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no covariates for subject %s", subjectID)
	}

	return models.CovariateRow(rows[0]), nil
}
