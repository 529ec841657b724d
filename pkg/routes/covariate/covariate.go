// Package covariate exposes read access to the materialized covariate
// table and the underlying cohort.
package covariate

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	cohortrepo "github.com/Ramsey-B/fern/internal/repositories/cohort"
	covariaterepo "github.com/Ramsey-B/fern/internal/repositories/covariate"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Handler handles covariate and cohort read routes.
type Handler struct {
	covariates *covariaterepo.Repository
	cohort     *cohortrepo.Repository
}

func NewHandler(covariates *covariaterepo.Repository, cohort *cohortrepo.Repository) *Handler {
	return &Handler{
		covariates: covariates,
		cohort:     cohort,
	}
}

// Register registers covariate and subject routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/covariates", h.ListCovariates)
	g.GET("/covariates/:subject_id", h.GetCovariates)
	g.GET("/subjects", h.ListSubjects)
	g.GET("/subjects/:subject_id", h.GetSubject)
}

func paging(c echo.Context) (int, int, error) {
	limit := defaultPageSize
	offset := 0
	if err := echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError(); err != nil {
		return 0, 0, httperror.NewHTTPError(http.StatusBadRequest, "limit and offset must be integers")
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

// ListCovariates lists covariate rows ordered by subject id.
func (h *Handler) ListCovariates(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset, err := paging(c)
	if err != nil {
		return err
	}

	rows, err := h.covariates.List(ctx, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rows)
}

// GetCovariates gets one subject's covariate row.
func (h *Handler) GetCovariates(c echo.Context) error {
	ctx := c.Request().Context()

	subjectID := c.Param("subject_id")
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject_id is required")
	}

	row, err := h.covariates.Get(ctx, subjectID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, row)
}

// ListSubjects lists cohort subjects.
func (h *Handler) ListSubjects(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset, err := paging(c)
	if err != nil {
		return err
	}

	subjects, err := h.cohort.List(ctx, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, subjects)
}

// GetSubject gets one cohort subject.
func (h *Handler) GetSubject(c echo.Context) error {
	ctx := c.Request().Context()

	subjectID := c.Param("subject_id")
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject_id is required")
	}

	subject, err := h.cohort.Get(ctx, subjectID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, subject)
}
