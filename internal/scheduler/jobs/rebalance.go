package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/internal/index"
	"github.com/indexlab/backend/pkg/logger"
)

// RebalanceJob recomputes constituent memberships for definitions whose
// rebalancing interval has elapsed.
type RebalanceJob struct {
	indexes domain.IndexRepository
	engine  *index.Engine
	logger  *logger.Logger
}

// NewRebalanceJob creates the rebalance job
func NewRebalanceJob(indexes domain.IndexRepository, engine *index.Engine, log *logger.Logger) *RebalanceJob {
	return &RebalanceJob{
		indexes: indexes,
		engine:  engine,
		logger:  log,
	}
}

func (j *RebalanceJob) Name() string { return "index_rebalance" }

// Weekdays at 23:00 UTC, after the calculation job
func (j *RebalanceJob) Schedule() string { return "0 0 23 * * 1-5" }

func (j *RebalanceJob) Run(ctx context.Context) error {
	active := true
	defs, err := j.indexes.List(ctx, &active, 0, 0)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	failures := 0

	for i := range defs {
		def := &defs[i]

		due, err := j.isDue(ctx, def, today)
		if err != nil {
			j.logger.WithError(err).WithField("index", def.Name).Warn("Rebalance due check failed")
			failures++
			continue
		}
		if !due {
			continue
		}

		report, err := j.engine.Rebalance(ctx, def, today)
		if err != nil {
			j.logger.WithError(err).WithField("index", def.Name).Warn("Rebalance failed")
			failures++
			continue
		}

		j.logger.WithFields(map[string]interface{}{
			"index":     def.Name,
			"additions": len(report.Additions),
			"removals":  len(report.Removals),
		}).Info("Index rebalanced on schedule")
	}

	if failures > 0 {
		return fmt.Errorf("%d rebalances failed", failures)
	}
	return nil
}

// isDue reports whether the definition's interval has elapsed since the
// last membership snapshot. A definition with no snapshot is always due.
func (j *RebalanceJob) isDue(ctx context.Context, def *domain.IndexDefinition, today time.Time) (bool, error) {
	current, err := j.indexes.ConstituentsAsOf(ctx, def.ID, today)
	if err != nil {
		return false, err
	}
	if len(current) == 0 {
		return true, nil
	}

	elapsed := today.Sub(current[0].Date)
	return elapsed >= time.Duration(def.RebalanceFrequency.Days())*24*time.Hour, nil
}
