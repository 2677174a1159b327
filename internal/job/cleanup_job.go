package job

import (
	"context"
	"log"
	"time"

	"foresight/internal/domain"
	"foresight/internal/transcript"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type RetentionSweeper interface {
	RetentionSweep(ctx context.Context) (int64, error)
}

// CleanupJob bounds storage growth: terminal content items past retention
// are deleted and orphaned temp audio is removed.
type CleanupJob struct {
	tracer       trace.Tracer
	sweeper      RetentionSweeper
	jobs         JobLog
	audioTempDir string
	pollInterval time.Duration
}

func NewCleanupJob(tracer trace.Tracer, sweeper RetentionSweeper, jobs JobLog, audioTempDir string, pollInterval time.Duration) *CleanupJob {
	if pollInterval <= 0 {
		pollInterval = 12 * time.Hour
	}
	return &CleanupJob{
		tracer:       tracer,
		sweeper:      sweeper,
		jobs:         jobs,
		audioTempDir: audioTempDir,
		pollInterval: pollInterval,
	}
}

func (j *CleanupJob) Start(ctx context.Context) {
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

func (j *CleanupJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "cleanup-job.run-once")
	defer span.End()

	jobID := uuid.NewString()
	if err := j.jobs.StartJob(ctx, jobID, domain.JobTypeCleanup); err != nil {
		log.Printf("start cleanup record: %v", err)
	}

	transcript.CleanOrphans(j.audioTempDir, transcript.OrphanMaxAge)

	deleted, err := j.sweeper.RetentionSweep(ctx)
	counts := domain.JobCounts{ItemsDeleted: deleted}
	if err != nil {
		log.Printf("cleanup error: %v", err)
		if ferr := j.jobs.FailJob(ctx, jobID, counts, err.Error()); ferr != nil {
			log.Printf("fail cleanup record: %v", ferr)
		}
		return
	}
	if err := j.jobs.CompleteJob(ctx, jobID, counts); err != nil {
		log.Printf("complete cleanup record: %v", err)
	}
}
