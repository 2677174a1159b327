package job

import (
	"context"
	"log"
	"time"

	"foresight/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type PendingValidator interface {
	ValidatePending(ctx context.Context, limit int) (int, error)
}

// ValidationJob periodically resolves pending predictions whose target dates
// have passed.
type ValidationJob struct {
	tracer       trace.Tracer
	validator    PendingValidator
	jobs         JobLog
	pollInterval time.Duration
	batchLimit   int
}

func NewValidationJob(tracer trace.Tracer, validator PendingValidator, jobs JobLog, pollInterval time.Duration, batchLimit int) *ValidationJob {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &ValidationJob{
		tracer:       tracer,
		validator:    validator,
		jobs:         jobs,
		pollInterval: pollInterval,
		batchLimit:   batchLimit,
	}
}

func (j *ValidationJob) Start(ctx context.Context) {
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

func (j *ValidationJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "validation-job.run-once")
	defer span.End()

	jobID := uuid.NewString()
	if err := j.jobs.StartJob(ctx, jobID, domain.JobTypeValidation); err != nil {
		log.Printf("start validation record: %v", err)
	}

	resolved, err := j.validator.ValidatePending(ctx, j.batchLimit)
	counts := domain.JobCounts{PredictionsValidated: resolved}
	if err != nil {
		log.Printf("validation cycle error: %v", err)
		if ferr := j.jobs.FailJob(ctx, jobID, counts, err.Error()); ferr != nil {
			log.Printf("fail validation record: %v", ferr)
		}
		return
	}

	if resolved > 0 {
		log.Printf("validation resolved %d prediction(s)", resolved)
	}
	if err := j.jobs.CompleteJob(ctx, jobID, counts); err != nil {
		log.Printf("complete validation record: %v", err)
	}
}
