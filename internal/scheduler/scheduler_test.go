package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	runs     int32
	err      error
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(_ context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func TestAddJob(t *testing.T) {
	s := New(logger.NewNop())

	job := &stubJob{name: "test_job", schedule: "0 0 0 * * *"}
	require.NoError(t, s.AddJob(job))

	err := s.AddJob(job)
	assert.ErrorContains(t, err, "already registered")
}

func TestAddJob_BadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	err := s.AddJob(&stubJob{name: "bad", schedule: "not a cron expr"})
	assert.Error(t, err)
}

func TestRunJob(t *testing.T) {
	s := New(logger.NewNop())

	job := &stubJob{name: "manual", schedule: "0 0 0 * * *"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("manual"))

	assert.Eventually(t, func() bool {
		stats, ok := s.Stats()["manual"]
		return ok && stats.TotalRuns == 1 && stats.SuccessCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}

func TestRunJob_Unknown(t *testing.T) {
	s := New(logger.NewNop())
	assert.ErrorContains(t, s.RunJob("missing"), "not found")
}

func TestRunJob_RetriesOnFailure(t *testing.T) {
	s := New(logger.NewNop())
	s.maxRetries = 2
	s.retryDelay = time.Millisecond

	job := &stubJob{name: "failing", schedule: "0 0 0 * * *", err: fmt.Errorf("boom")}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("failing"))

	assert.Eventually(t, func() bool {
		stats, ok := s.Stats()["failing"]
		return ok && stats.TotalRuns == 1 && stats.FailureCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Initial attempt plus two retries
	assert.Equal(t, int32(3), atomic.LoadInt32(&job.runs))

	stats := s.Stats()["failing"]
	assert.Equal(t, "boom", stats.LastError)
	assert.Zero(t, stats.SuccessRate)
}

func TestStatsEndpoint(t *testing.T) {
	s := New(logger.NewNop())

	job := &stubJob{name: "nightly", schedule: "0 0 0 * * *"}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("nightly"))

	assert.Eventually(t, func() bool {
		stats, ok := s.Stats()["nightly"]
		return ok && stats.TotalRuns == 1
	}, 2*time.Second, 10*time.Millisecond)

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]JobStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))

	require.Contains(t, stats, "nightly")
	assert.Equal(t, 1, stats["nightly"].TotalRuns)
	assert.Equal(t, "0 0 0 * * *", stats["nightly"].Schedule)
	require.NotNil(t, stats["nightly"].LastRun)
}

func TestHealthEndpoint(t *testing.T) {
	s := New(logger.NewNop())
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "0 0 0 * * *"}))

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Status string `json:"status"`
		Jobs   int    `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, 1, payload.Jobs)
}

func TestJobHistoryLimit(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+20; i++ {
		h.AddResult(JobResult{JobName: "j", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, "j", latest.JobName)
}

func TestJobHistorySuccessRate(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.SuccessRate())

	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false})

	assert.InDelta(t, 2.0/3.0, h.SuccessRate(), 1e-9)
	assert.Equal(t, 1, h.FailureCount())
}
