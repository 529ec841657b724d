// Package run exposes the pipeline run endpoints: trigger a covariate
// materialization run and inspect past runs.
package run

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/runlog"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/pipeline"
)

// Handler handles pipeline run routes.
type Handler struct {
	service *pipeline.Service
	runs    *runlog.Repository
	logger  logging.Logger
}

func NewHandler(service *pipeline.Service, runs *runlog.Repository, logger logging.Logger) *Handler {
	return &Handler{
		service: service,
		runs:    runs,
		logger:  logger,
	}
}

// Register registers run routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.CreateRun)
	g.GET("", h.ListRuns)
	g.GET("/:id", h.GetRun)
}

// CreateRunRequest is the request body for triggering a run.
type CreateRunRequest struct {
	TargetTable string `json:"target_table,omitempty"`
	Overwrite   bool   `json:"overwrite"`
}

// CreateRun triggers a pipeline run synchronously and returns the
// completed run record.
func (h *Handler) CreateRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	run, err := h.service.Run(ctx, pipeline.RunOptions{
		TargetTable: req.TargetTable,
		Overwrite:   req.Overwrite,
	})
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{"run_id": run.ID}).Info("Created pipeline run")

	return c.JSON(http.StatusCreated, run)
}

// ListRuns lists recent runs, newest first.
func (h *Handler) ListRuns(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 0
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}

	runs, err := h.runs.List(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, runs)
}

// GetRun gets a run by ID.
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "id must be a UUID")
	}

	run, err := h.runs.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, run)
}
