package job

import (
	"context"
	"log"
	"strings"
	"time"

	"foresight/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type TrackedRefresher interface {
	RefreshTracked(ctx context.Context) (int, []string, error)
}

// PriceRefreshJob keeps quotes warm for every asset with pending
// predictions.
type PriceRefreshJob struct {
	tracer       trace.Tracer
	refresher    TrackedRefresher
	jobs         JobLog
	pollInterval time.Duration
}

func NewPriceRefreshJob(tracer trace.Tracer, refresher TrackedRefresher, jobs JobLog, pollInterval time.Duration) *PriceRefreshJob {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &PriceRefreshJob{
		tracer:       tracer,
		refresher:    refresher,
		jobs:         jobs,
		pollInterval: pollInterval,
	}
}

func (j *PriceRefreshJob) Start(ctx context.Context) {
	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *PriceRefreshJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "price-refresh-job.run-once")
	defer span.End()

	jobID := uuid.NewString()
	if err := j.jobs.StartJob(ctx, jobID, domain.JobTypePriceRefresh); err != nil {
		log.Printf("start price refresh record: %v", err)
	}

	refreshed, symbolErrs, err := j.refresher.RefreshTracked(ctx)
	counts := domain.JobCounts{ItemsProcessed: refreshed, Errors: symbolErrs}
	if err != nil {
		log.Printf("price refresh error: %v", err)
		if ferr := j.jobs.FailJob(ctx, jobID, counts, err.Error()); ferr != nil {
			log.Printf("fail price refresh record: %v", ferr)
		}
		return
	}
	if len(symbolErrs) > 0 {
		log.Printf("price refresh: %d refreshed, %d failed: %s",
			refreshed, len(symbolErrs), strings.Join(symbolErrs, "; "))
	}
	if err := j.jobs.CompleteJob(ctx, jobID, counts); err != nil {
		log.Printf("complete price refresh record: %v", err)
	}
}
