package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"foresight/internal/collector"
	"foresight/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// JobLog records one row per sweep or manual trigger for the admin surface.
type JobLog interface {
	StartJob(ctx context.Context, id, jobType string) error
	CompleteJob(ctx context.Context, id string, counts domain.JobCounts) error
	FailJob(ctx context.Context, id string, counts domain.JobCounts, errMsg string) error
}

type ChannelStore interface {
	ListCollectable(ctx context.Context) ([]domain.Channel, error)
	GetChannel(ctx context.Context, id int64) (*domain.Channel, error)
	UpdateLastChecked(ctx context.Context, id int64, checkedAt time.Time) error
}

type Collector interface {
	CollectChannel(ctx context.Context, ch domain.Channel) (collector.Stats, error)
	CollectPost(ctx context.Context, ch domain.Channel, postID string) (collector.Stats, error)
	ProcessQueue(ctx context.Context, limit int) (int, error)
}

// TriggerResult is the outcome of one manual channel trigger.
type TriggerResult struct {
	JobID     string
	Stats     collector.Stats
	Processed int
	Err       error
}

// TaskHandle lets the caller of a manual trigger observe completion instead
// of firing and forgetting.
type TaskHandle struct {
	done   chan struct{}
	result TriggerResult
}

func (h *TaskHandle) Wait(ctx context.Context) (TriggerResult, error) {
	select {
	case <-ctx.Done():
		return TriggerResult{}, ctx.Err()
	case <-h.done:
		return h.result, nil
	}
}

type triggerRequest struct {
	channelID int64
	postID    string
	handle    *TaskHandle
}

// CollectionJob sweeps due channels on a timer and serves manual triggers in
// between ticks.
type CollectionJob struct {
	tracer       trace.Tracer
	channels     ChannelStore
	collector    Collector
	jobs         JobLog
	pollInterval time.Duration
	queueLimit   int
	triggers     chan triggerRequest
}

func NewCollectionJob(
	tracer trace.Tracer,
	channels ChannelStore,
	coll Collector,
	jobs JobLog,
	pollInterval time.Duration,
	queueLimit int,
) *CollectionJob {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Minute
	}
	if queueLimit <= 0 {
		queueLimit = 25
	}
	return &CollectionJob{
		tracer:       tracer,
		channels:     channels,
		collector:    coll,
		jobs:         jobs,
		pollInterval: pollInterval,
		queueLimit:   queueLimit,
		triggers:     make(chan triggerRequest, 16),
	}
}

// TriggerChannel queues an immediate collection for one channel, bypassing
// the due check. The returned handle resolves when the trigger has run.
func (j *CollectionJob) TriggerChannel(channelID int64, postID string) (*TaskHandle, error) {
	handle := &TaskHandle{done: make(chan struct{})}
	select {
	case j.triggers <- triggerRequest{channelID: channelID, postID: postID, handle: handle}:
		return handle, nil
	default:
		return nil, fmt.Errorf("trigger queue full")
	}
}

func (j *CollectionJob) Start(ctx context.Context) {
	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-j.triggers:
			req.handle.result = j.runTrigger(ctx, req)
			close(req.handle.done)
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CollectionJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "collection-job.run-once")
	defer span.End()

	jobID := uuid.NewString()
	if err := j.jobs.StartJob(ctx, jobID, domain.JobTypeCollectionSweep); err != nil {
		log.Printf("start collection sweep record: %v", err)
	}

	var counts domain.JobCounts

	channels, err := j.channels.ListCollectable(ctx)
	if err != nil {
		log.Printf("list collectable channels: %v", err)
		j.failJob(ctx, jobID, counts, err)
		return
	}

	now := time.Now()
	for _, ch := range channels {
		if !ch.Due(now) {
			continue
		}
		counts.ChannelsChecked++

		stats, err := j.collector.CollectChannel(ctx, ch)
		counts.ItemsCollected += stats.Collected
		counts.ItemsFiltered += stats.Filtered
		if err != nil {
			// One broken channel must not stop the sweep.
			log.Printf("collect channel %d: %v", ch.ID, err)
			counts.Errors = append(counts.Errors, fmt.Sprintf("channel %d: %v", ch.ID, err))
			continue
		}
		if err := j.channels.UpdateLastChecked(ctx, ch.ID, now); err != nil {
			log.Printf("update last checked for channel %d: %v", ch.ID, err)
		}
	}

	processed, err := j.collector.ProcessQueue(ctx, j.queueLimit)
	counts.ItemsProcessed = processed
	if err != nil {
		counts.Errors = append(counts.Errors, fmt.Sprintf("process queue: %v", err))
	}

	span.SetAttributes(
		attribute.Int("collection.channels_checked", counts.ChannelsChecked),
		attribute.Int("collection.items_collected", counts.ItemsCollected),
		attribute.Int("collection.items_processed", counts.ItemsProcessed),
	)

	if err := j.jobs.CompleteJob(ctx, jobID, counts); err != nil {
		log.Printf("complete collection sweep record: %v", err)
	}
	if counts.ItemsCollected > 0 || counts.ItemsProcessed > 0 {
		log.Printf("collection sweep: %d channel(s), %d collected, %d processed",
			counts.ChannelsChecked, counts.ItemsCollected, counts.ItemsProcessed)
	}
}

func (j *CollectionJob) runTrigger(ctx context.Context, req triggerRequest) TriggerResult {
	ctx, span := j.tracer.Start(ctx, "collection-job.manual-trigger")
	defer span.End()
	span.SetAttributes(attribute.Int64("channel.id", req.channelID))

	jobID := uuid.NewString()
	if err := j.jobs.StartJob(ctx, jobID, domain.JobTypeManualTrigger); err != nil {
		log.Printf("start manual trigger record: %v", err)
	}
	res := TriggerResult{JobID: jobID}

	ch, err := j.channels.GetChannel(ctx, req.channelID)
	if err == nil && ch == nil {
		err = fmt.Errorf("channel %d not found", req.channelID)
	}
	if err != nil {
		res.Err = err
		j.failJob(ctx, jobID, domain.JobCounts{}, err)
		return res
	}

	if req.postID != "" {
		res.Stats, err = j.collector.CollectPost(ctx, *ch, req.postID)
	} else {
		res.Stats, err = j.collector.CollectChannel(ctx, *ch)
	}
	counts := domain.JobCounts{
		ChannelsChecked: 1,
		ItemsCollected:  res.Stats.Collected,
		ItemsFiltered:   res.Stats.Filtered,
	}
	if err != nil {
		res.Err = err
		j.failJob(ctx, jobID, counts, err)
		return res
	}

	if err := j.channels.UpdateLastChecked(ctx, ch.ID, time.Now()); err != nil {
		log.Printf("update last checked for channel %d: %v", ch.ID, err)
	}

	res.Processed, err = j.collector.ProcessQueue(ctx, j.queueLimit)
	counts.ItemsProcessed = res.Processed
	if err != nil {
		counts.Errors = append(counts.Errors, fmt.Sprintf("process queue: %v", err))
	}

	if err := j.jobs.CompleteJob(ctx, jobID, counts); err != nil {
		log.Printf("complete manual trigger record: %v", err)
	}
	return res
}

func (j *CollectionJob) failJob(ctx context.Context, jobID string, counts domain.JobCounts, cause error) {
	if err := j.jobs.FailJob(ctx, jobID, counts, cause.Error()); err != nil {
		log.Printf("fail job record %s: %v", jobID, err)
	}
}
