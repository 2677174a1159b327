package job

import (
	"context"
	"log"
	"time"

	"foresight/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type RankRecomputer interface {
	RecomputeRanks(ctx context.Context, minSamples int) (int64, error)
}

// RankingJob periodically reorders the forecaster leaderboard by accuracy.
type RankingJob struct {
	tracer       trace.Tracer
	forecasters  RankRecomputer
	jobs         JobLog
	pollInterval time.Duration
	minSamples   int
}

func NewRankingJob(tracer trace.Tracer, forecasters RankRecomputer, jobs JobLog, pollInterval time.Duration, minSamples int) *RankingJob {
	if pollInterval <= 0 {
		pollInterval = 6 * time.Hour
	}
	if minSamples <= 0 {
		minSamples = 5
	}
	return &RankingJob{
		tracer:       tracer,
		forecasters:  forecasters,
		jobs:         jobs,
		pollInterval: pollInterval,
		minSamples:   minSamples,
	}
}

func (j *RankingJob) Start(ctx context.Context) {
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

func (j *RankingJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "ranking-job.run-once")
	defer span.End()

	jobID := uuid.NewString()
	if err := j.jobs.StartJob(ctx, jobID, domain.JobTypeRanking); err != nil {
		log.Printf("start ranking record: %v", err)
	}

	ranked, err := j.forecasters.RecomputeRanks(ctx, j.minSamples)
	counts := domain.JobCounts{ItemsProcessed: int(ranked)}
	if err != nil {
		log.Printf("ranking error: %v", err)
		if ferr := j.jobs.FailJob(ctx, jobID, counts, err.Error()); ferr != nil {
			log.Printf("fail ranking record: %v", ferr)
		}
		return
	}
	if err := j.jobs.CompleteJob(ctx, jobID, counts); err != nil {
		log.Printf("complete ranking record: %v", err)
	}
}
