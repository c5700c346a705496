package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/indexlab/backend/internal/ingest"
	"github.com/indexlab/backend/pkg/logger"
	"github.com/indexlab/backend/pkg/metrics"
)

// IngestionJob refreshes recent price bars for all active securities
// from the market data provider.
type IngestionJob struct {
	ingestor *ingest.APIIngestor
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewIngestionJob creates the nightly price refresh job. m may be nil.
func NewIngestionJob(ingestor *ingest.APIIngestor, m *metrics.Metrics, log *logger.Logger) *IngestionJob {
	return &IngestionJob{
		ingestor: ingestor,
		metrics:  m,
		logger:   log,
	}
}

func (j *IngestionJob) Name() string { return "nightly_price_refresh" }

// Every day at 21:45 UTC, before the calculation job
func (j *IngestionJob) Schedule() string { return "0 45 21 * * 1-5" }

func (j *IngestionJob) Run(ctx context.Context) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)

	report, err := j.ingestor.FetchPrices(ctx, nil, from, to)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	if j.metrics != nil {
		j.metrics.IngestedRecordsTotal.WithLabelValues("api", "prices").Add(float64(report.Written))
	}

	j.logger.WithFields(map[string]interface{}{
		"job_id":  report.JobID,
		"written": report.Written,
		"failed":  report.Failed,
	}).Info("Nightly price refresh completed")

	if report.Failed == report.Symbols && report.Symbols > 0 {
		return fmt.Errorf("all %d symbols failed to refresh", report.Symbols)
	}
	return nil
}
