// Package pipeline orchestrates one covariate run: codelist staging,
// per-source extraction, first-event aggregation and materialization,
// with run bookkeeping and lifecycle events around it.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/internal/repositories/runlog"
	"github.com/Ramsey-B/fern/pkg/aggregate"
	"github.com/Ramsey-B/fern/pkg/codelist"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/extract"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

// RunPublisher publishes run lifecycle events. Satisfied by
// events.Producer; nil disables publishing.
type RunPublisher interface {
	PublishRunEvent(ctx context.Context, event *events.RunEvent) error
}

// RunOptions controls one pipeline run.
type RunOptions struct {
	// TargetTable overrides the configured covariate table name.
	TargetTable string
	// Overwrite replaces an existing target table instead of failing.
	Overwrite bool
}

// Service wires the pipeline stages together.
type Service struct {
	wh          *warehouse.Warehouse
	loader      *codelist.Loader
	extractor   *extract.Extractor
	aggregator  *aggregate.Aggregator
	runs        *runlog.Repository
	publisher   RunPublisher
	sources     []SourceSpec
	codelistDir string
	cohortTable string
	targetTable string
	logger      logging.Logger
}

func NewService(
	wh *warehouse.Warehouse,
	loader *codelist.Loader,
	extractor *extract.Extractor,
	aggregator *aggregate.Aggregator,
	runs *runlog.Repository,
	publisher RunPublisher,
	sources []SourceSpec,
	codelistDir, cohortTable, targetTable string,
	logger logging.Logger,
) *Service {
	return &Service{
		wh:          wh,
		loader:      loader,
		extractor:   extractor,
		aggregator:  aggregator,
		runs:        runs,
		publisher:   publisher,
		sources:     sources,
		codelistDir: codelistDir,
		cohortTable: cohortTable,
		targetTable: targetTable,
		logger:      logger,
	}
}

// Run executes the full pipeline and returns the completed run record.
// The run is logged and published as failed before the error is returned,
// so callers only need to surface it.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Service.Run")
	defer span.End()

	started := time.Now()
	target := opts.TargetTable
	if target == "" {
		target = s.targetTable
	}

	run, err := s.runs.Create(ctx, target, opts.Overwrite)
	if err != nil {
		return nil, err
	}

	if err := s.runs.MarkRunning(ctx, run.ID); err != nil {
		return nil, err
	}
	s.publish(ctx, &events.RunEvent{
		EventType:   events.EventRunStarted,
		RunID:       run.ID.String(),
		TargetTable: target,
	})

	subjectCount, resultCount, err := s.execute(ctx, target, opts.Overwrite)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("run_id", run.ID.String()).Error("Pipeline run failed")
		if markErr := s.runs.MarkFailed(ctx, run.ID, err.Error()); markErr != nil {
			s.logger.WithContext(ctx).WithError(markErr).WithField("run_id", run.ID.String()).Error("Failed to record run failure")
		}
		s.publish(ctx, &events.RunEvent{
			EventType:   events.EventRunFailed,
			RunID:       run.ID.String(),
			TargetTable: target,
			Error:       err.Error(),
		})
		metrics.RecordRun(string(models.RunStatusFailed), time.Since(started).Seconds())
		return nil, err
	}

	s.publish(ctx, &events.RunEvent{
		EventType:   events.EventCovariatesMaterialized,
		RunID:       run.ID.String(),
		TargetTable: target,
		ResultCount: resultCount,
	})

	if err := s.runs.MarkCompleted(ctx, run.ID, subjectCount, resultCount); err != nil {
		return nil, err
	}
	s.publish(ctx, &events.RunEvent{
		EventType:    events.EventRunCompleted,
		RunID:        run.ID.String(),
		TargetTable:  target,
		SubjectCount: subjectCount,
		ResultCount:  resultCount,
	})
	metrics.RecordRun(string(models.RunStatusCompleted), time.Since(started).Seconds())

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":        run.ID.String(),
		"target_table":  target,
		"subject_count": subjectCount,
		"result_count":  resultCount,
	}).Info("Pipeline run completed")

	return s.runs.Get(ctx, run.ID)
}

func (s *Service) execute(ctx context.Context, target string, overwrite bool) (int, int, error) {
	if err := s.wh.EnsureSchema(ctx, s.wh.Schema(), false); err != nil {
		return 0, 0, errors.Wrap(err, "failed to ensure analysis schema")
	}

	entries, err := s.loader.LoadDir(s.codelistDir)
	if err != nil {
		return 0, 0, err
	}
	if len(entries) == 0 {
		return 0, 0, errors.Errorf("no codelist entries found in %s", s.codelistDir)
	}

	codes, err := s.loader.Stage(ctx, entries)
	if err != nil {
		return 0, 0, err
	}
	phenotypes := codelist.Phenotypes(entries)

	subjects, err := s.wh.Table(s.cohortTable)
	if err != nil {
		return 0, 0, err
	}

	eventRels := make([]warehouse.Relation, 0, len(s.sources))
	for _, spec := range s.sources {
		source, err := s.wh.Table(spec.Table)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "failed to resolve source table %s", spec.Table)
		}

		for _, mapping := range spec.Mappings {
			rel, err := s.extractor.Events(source, codes, mapping, spec.CodingSystem, spec.Name, spec.Priority)
			if err != nil {
				return 0, 0, err
			}
			eventRels = append(eventRels, rel)
		}
	}

	allEvents, err := warehouse.UnionAll(eventRels...)
	if err != nil {
		return 0, 0, err
	}

	covariates, err := s.aggregator.Covariates(allEvents, subjects, phenotypes)
	if err != nil {
		return 0, 0, err
	}

	handle, err := s.wh.Materialize(ctx, covariates, target, warehouse.MaterializeOptions{Overwrite: overwrite})
	if err != nil {
		return 0, 0, err
	}

	subjectCount, err := subjects.Count(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count cohort subjects")
	}

	resultCount, err := handle.Relation().Count(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count materialized rows")
	}

	return subjectCount, resultCount, nil
}

func (s *Service) publish(ctx context.Context, event *events.RunEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRunEvent(ctx, event); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("event_type", event.EventType).Warn("Failed to publish run event")
		metrics.RecordEventPublished(event.EventType, "failed")
		return
	}
	metrics.RecordEventPublished(event.EventType, "published")
}
