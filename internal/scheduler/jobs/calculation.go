package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/index"
	"github.com/indexlab/backend/internal/realtime"
	"github.com/indexlab/backend/pkg/logger"
)

// CalculationJob computes and stores the daily value of every active
// index definition after market close.
type CalculationJob struct {
	indexes domain.IndexRepository
	engine  *index.Engine
	hub     *realtime.Hub
	logger  *logger.Logger
}

// NewCalculationJob creates the daily calculation job. hub may be nil.
func NewCalculationJob(indexes domain.IndexRepository, engine *index.Engine, hub *realtime.Hub, log *logger.Logger) *CalculationJob {
	return &CalculationJob{
		indexes: indexes,
		engine:  engine,
		hub:     hub,
		logger:  log,
	}
}

func (j *CalculationJob) Name() string { return "daily_index_calculation" }

// Weekdays at 22:30 UTC, after US close
func (j *CalculationJob) Schedule() string { return "0 30 22 * * 1-5" }

func (j *CalculationJob) Run(ctx context.Context) error {
	active := true
	defs, err := j.indexes.List(ctx, &active, 0, 0)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	failures := 0

	for i := range defs {
		def := &defs[i]

		valuation, err := j.engine.ValueAt(ctx, def, today)
		if err != nil {
			j.logger.WithError(err).WithField("index", def.Name).Warn("Index calculation failed")
			failures++
			continue
		}

		value := &domain.IndexValue{
			IndexID: def.ID,
			Date:    valuation.Date,
			Value:   valuation.IndexValue,
		}
		if err := j.indexes.SaveValue(ctx, value); err != nil {
			j.logger.WithError(err).WithField("index", def.Name).Warn("Index value save failed")
			failures++
			continue
		}

		if j.hub != nil {
			j.hub.Publish(realtime.IndexTick{
				IndexID:    def.ID,
				Name:       def.Name,
				Date:       valuation.Date,
				IndexValue: valuation.IndexValue,
			})
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d index calculations failed", failures, len(defs))
	}
	return nil
}
