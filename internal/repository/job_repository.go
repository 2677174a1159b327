package repository

import (
	"context"
	"encoding/json"

	"foresight/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type JobRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewJobRepository(pool pool, tracer trace.Tracer) *JobRepository {
	return &JobRepository{pool: pool, tracer: tracer}
}

func (r *JobRepository) StartJob(ctx context.Context, id, jobType string) error {
	_, span := r.tracer.Start(ctx, "job-repo.start")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
INSERT INTO jobs (id, job_type, status, counts, started_at)
VALUES ($1, $2, 'running', '{}', NOW())`, id, jobType)
	return err
}

func (r *JobRepository) CompleteJob(ctx context.Context, id string, counts domain.JobCounts) error {
	_, span := r.tracer.Start(ctx, "job-repo.complete")
	defer span.End()

	return r.finishJob(ctx, id, domain.JobStatusCompleted, counts, "")
}

func (r *JobRepository) FailJob(ctx context.Context, id string, counts domain.JobCounts, errMsg string) error {
	_, span := r.tracer.Start(ctx, "job-repo.fail")
	defer span.End()

	return r.finishJob(ctx, id, domain.JobStatusFailed, counts, errMsg)
}

func (r *JobRepository) finishJob(ctx context.Context, id string, status domain.JobStatus, counts domain.JobCounts, errMsg string) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
UPDATE jobs
SET status = $2, counts = $3, error = $4, finished_at = NOW()
WHERE id = $1`, id, status, raw, errMsg)
	return err
}

func (r *JobRepository) RecentJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	_, span := r.tracer.Start(ctx, "job-repo.recent")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, job_type, status, counts, error, started_at, finished_at
FROM jobs
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var (
			job        domain.Job
			countsRaw  []byte
			finishedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&job.ID, &job.Type, &job.Status, &countsRaw, &job.Error, &job.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		if len(countsRaw) > 0 {
			if err := json.Unmarshal(countsRaw, &job.Counts); err != nil {
				return nil, err
			}
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			job.FinishedAt = &t
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
