package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"foresight/internal/domain"
)

type fakeValidator struct {
	resolved int
	err      error
}

func (f *fakeValidator) ValidatePending(_ context.Context, _ int) (int, error) {
	return f.resolved, f.err
}

func TestValidationJobRecordsOutcome(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobLog()
	j := NewValidationJob(testTracer, &fakeValidator{resolved: 7}, jobs, time.Hour, 100)
	j.runOnce(context.Background())

	rec := jobs.last()
	if rec.jobType != domain.JobTypeValidation || rec.status != domain.JobStatusCompleted {
		t.Errorf("record = %+v", rec)
	}
	if rec.counts.PredictionsValidated != 7 {
		t.Errorf("validated = %d, want 7", rec.counts.PredictionsValidated)
	}
}

func TestValidationJobFailure(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobLog()
	j := NewValidationJob(testTracer, &fakeValidator{err: errors.New("db down")}, jobs, time.Hour, 100)
	j.runOnce(context.Background())

	if rec := jobs.last(); rec.status != domain.JobStatusFailed || rec.errMsg == "" {
		t.Errorf("record = %+v", rec)
	}
}

type fakeRefresher struct {
	refreshed  int
	symbolErrs []string
}

func (f *fakeRefresher) RefreshTracked(_ context.Context) (int, []string, error) {
	return f.refreshed, f.symbolErrs, nil
}

func TestPriceRefreshJobRecordsSymbolErrors(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobLog()
	j := NewPriceRefreshJob(testTracer, &fakeRefresher{refreshed: 4, symbolErrs: []string{"OBSCURE: no source"}}, jobs, time.Minute)
	j.runOnce(context.Background())

	rec := jobs.last()
	if rec.status != domain.JobStatusCompleted {
		t.Errorf("status = %s, want completed with per-symbol errors recorded", rec.status)
	}
	if rec.counts.ItemsProcessed != 4 || len(rec.counts.Errors) != 1 {
		t.Errorf("counts = %+v", rec.counts)
	}
}

type fakeRanker struct {
	ranked     int64
	minSamples int
}

func (f *fakeRanker) RecomputeRanks(_ context.Context, minSamples int) (int64, error) {
	f.minSamples = minSamples
	return f.ranked, nil
}

func TestRankingJob(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobLog()
	ranker := &fakeRanker{ranked: 12}
	j := NewRankingJob(testTracer, ranker, jobs, time.Hour, 5)
	j.runOnce(context.Background())

	if ranker.minSamples != 5 {
		t.Errorf("minSamples = %d", ranker.minSamples)
	}
	rec := jobs.last()
	if rec.jobType != domain.JobTypeRanking || rec.counts.ItemsProcessed != 12 {
		t.Errorf("record = %+v", rec)
	}
}

type fakeSweeper struct {
	deleted int64
	err     error
}

func (f *fakeSweeper) RetentionSweep(_ context.Context) (int64, error) {
	return f.deleted, f.err
}

func TestCleanupJob(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobLog()
	j := NewCleanupJob(testTracer, &fakeSweeper{deleted: 9}, jobs, t.TempDir(), time.Hour)
	j.runOnce(context.Background())

	rec := jobs.last()
	if rec.jobType != domain.JobTypeCleanup || rec.status != domain.JobStatusCompleted {
		t.Errorf("record = %+v", rec)
	}
	if rec.counts.ItemsDeleted != 9 {
		t.Errorf("deleted = %d, want 9", rec.counts.ItemsDeleted)
	}
}
