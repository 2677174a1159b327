package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"foresight/internal/domain"
	"foresight/internal/provider"
	"foresight/internal/transcript"

	"go.opentelemetry.io/otel/trace"
)

// RetentionWindow is the default for how long terminal items are kept
// before the cleanup sweep deletes them.
const RetentionWindow = 30 * 24 * time.Hour

// FreshnessWindow is the default re-collection bound: a source item already
// collected within this window is skipped by the sweep.
const FreshnessWindow = 7 * 24 * time.Hour

const defaultMaxItems = 15

type ContentStore interface {
	UpsertItem(ctx context.Context, item domain.ContentItem) (*domain.ContentItem, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ContentStatus) error
	UpdateProcessing(ctx context.Context, id int64, meta domain.ProcessingMetadata) error
	UpdateData(ctx context.Context, id int64, data domain.ContentData) error
	ProcessingQueue(ctx context.Context, limit int) ([]domain.ContentItem, error)
	CollectedSince(ctx context.Context, sourceType domain.SourceType, sourceID string, since time.Time) (bool, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type VideoSource interface {
	FetchRecentVideos(ctx context.Context, channelID string, maxItems int) ([]provider.VideoItem, error)
}

type PostSource interface {
	FetchPost(ctx context.Context, postID string) (*provider.SocialPost, error)
}

type TranscriptAcquirer interface {
	Acquire(ctx context.Context, item *domain.ContentItem) (transcript.Result, error)
}

// Extractor runs prediction extraction for one item and owns the
// extracting -> processed transition on success.
type Extractor interface {
	ProcessItem(ctx context.Context, item *domain.ContentItem) error
}

// Stats summarizes one channel collection pass.
type Stats struct {
	Fetched   int
	Collected int
	Filtered  int
	Skipped   int
}

type Service struct {
	tracer      trace.Tracer
	content     ContentStore
	videos      VideoSource
	posts       PostSource
	transcripts TranscriptAcquirer
	extractor   Extractor
	maxItems    int
	freshness   time.Duration
	retention   time.Duration
}

func NewService(
	tracer trace.Tracer,
	content ContentStore,
	videos VideoSource,
	posts PostSource,
	transcripts TranscriptAcquirer,
	extractor Extractor,
	maxItems int,
	freshness, retention time.Duration,
) *Service {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if freshness <= 0 {
		freshness = FreshnessWindow
	}
	if retention <= 0 {
		retention = RetentionWindow
	}
	return &Service{
		tracer:      tracer,
		content:     content,
		videos:      videos,
		posts:       posts,
		transcripts: transcripts,
		extractor:   extractor,
		maxItems:    maxItems,
		freshness:   freshness,
		retention:   retention,
	}
}

// CollectChannel fetches the channel's recent items, filters them by the
// channel's keywords, and upserts survivors as collected content. Social
// channels have no public listing endpoint; their posts arrive through
// CollectPost instead.
func (s *Service) CollectChannel(ctx context.Context, ch domain.Channel) (Stats, error) {
	ctx, span := s.tracer.Start(ctx, "collector.collect-channel")
	defer span.End()

	var stats Stats

	if ch.ChannelType != domain.ChannelTypeVideo {
		log.Printf("channel %d (%s): no listing source, skipping sweep", ch.ID, ch.ChannelType)
		return stats, nil
	}

	videos, err := s.videos.FetchRecentVideos(ctx, ch.ExternalID, s.maxItems)
	if err != nil {
		return stats, fmt.Errorf("fetch recent videos for channel %d: %w", ch.ID, err)
	}
	stats.Fetched = len(videos)

	since := time.Now().Add(-s.freshness)
	for _, v := range videos {
		seen, err := s.content.CollectedSince(ctx, domain.SourceTypeVideo, v.VideoID, since)
		if err != nil {
			return stats, fmt.Errorf("check collected %s: %w", v.VideoID, err)
		}
		if seen {
			stats.Skipped++
			continue
		}
		if !matchesKeywords(ch, v.Title+" "+v.Description) {
			stats.Filtered++
			continue
		}

		published := v.PublishedAt
		item := domain.ContentItem{
			SourceType:   domain.SourceTypeVideo,
			SourceID:     v.VideoID,
			ForecasterID: ch.ForecasterID,
			ChannelID:    ch.ID,
			SourceURL:    v.URL,
			Status:       domain.StatusCollected,
			Data: domain.ContentData{
				Title:       v.Title,
				Description: v.Description,
				PublishedAt: &published,
			},
		}
		if _, err := s.content.UpsertItem(ctx, item); err != nil {
			return stats, fmt.Errorf("upsert video %s: %w", v.VideoID, err)
		}
		stats.Collected++
	}

	return stats, nil
}

// CollectPost collects one social post for a channel. Used by the manual
// trigger path where the post id is known.
func (s *Service) CollectPost(ctx context.Context, ch domain.Channel, postID string) (Stats, error) {
	ctx, span := s.tracer.Start(ctx, "collector.collect-post")
	defer span.End()

	var stats Stats

	post, err := s.posts.FetchPost(ctx, postID)
	if err != nil {
		return stats, fmt.Errorf("fetch post %s: %w", postID, err)
	}
	stats.Fetched = 1

	if !matchesKeywords(ch, post.Text) {
		stats.Filtered = 1
		return stats, nil
	}

	published := post.PublishedAt
	item := domain.ContentItem{
		SourceType:   domain.SourceTypePost,
		SourceID:     post.PostID,
		ForecasterID: ch.ForecasterID,
		ChannelID:    ch.ID,
		SourceURL:    post.URL,
		Status:       domain.StatusCollected,
		Data: domain.ContentData{
			Title:       post.Text,
			PublishedAt: &published,
		},
	}
	if _, err := s.content.UpsertItem(ctx, item); err != nil {
		return stats, fmt.Errorf("upsert post %s: %w", postID, err)
	}
	stats.Collected = 1
	return stats, nil
}

// ProcessQueue pulls up to limit queued items in priority order and runs
// each through transcript acquisition and extraction. Item failures are
// isolated; the return value is the number of items fully processed.
func (s *Service) ProcessQueue(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "collector.process-queue")
	defer span.End()

	items, err := s.content.ProcessingQueue(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("load processing queue: %w", err)
	}

	processed := 0
	for i := range items {
		if err := s.processItem(ctx, &items[i]); err != nil {
			if errors.Is(err, transcript.ErrRetryLater) {
				// The item keeps its partial state and its queue priority;
				// the next sweep retries transcription from the persisted
				// audio path.
				log.Printf("item %d (%s): transcription deferred to next sweep", items[i].ID, items[i].SourceID)
			} else {
				log.Printf("process item %d (%s): %v", items[i].ID, items[i].SourceID, err)
			}
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) processItem(ctx context.Context, item *domain.ContentItem) error {
	ctx, span := s.tracer.Start(ctx, "collector.process-item")
	defer span.End()

	if s.needsTranscript(item) {
		res, err := s.transcripts.Acquire(ctx, item)
		if err != nil {
			return fmt.Errorf("acquire transcript: %w", err)
		}
		item.Data.Transcript = res.Transcript
		item.Data.TranscriptSource = res.Source
		if err := s.content.UpdateData(ctx, item.ID, item.Data); err != nil {
			return fmt.Errorf("persist transcript: %w", err)
		}
		if item.Status != domain.StatusTranscribed {
			// Caption and transcript-API tiers (and the soft fallback) skip
			// the audio states entirely.
			item.Status = domain.StatusTranscribed
			if err := s.content.UpdateStatus(ctx, item.ID, domain.StatusTranscribed); err != nil {
				return fmt.Errorf("mark transcribed: %w", err)
			}
		}
	}

	if err := s.extractor.ProcessItem(ctx, item); err != nil {
		return s.recordExtractionFailure(ctx, item, err)
	}
	return nil
}

// needsTranscript reports whether the item still needs transcript
// acquisition before it can be extracted. Posts carry their full text at
// collection time.
func (s *Service) needsTranscript(item *domain.ContentItem) bool {
	if item.SourceType != domain.SourceTypeVideo {
		return false
	}
	switch item.Status {
	case domain.StatusCollected, domain.StatusAudioDownloading,
		domain.StatusAudioDownloaded, domain.StatusTranscribing:
		return true
	}
	return item.Data.Transcript == "" && item.Data.TranscriptSource == ""
}

func (s *Service) recordExtractionFailure(ctx context.Context, item *domain.ContentItem, cause error) error {
	meta := item.Processing
	meta.LastStep = "extraction"
	meta.LastError = cause.Error()
	meta.RetryCount++
	item.Processing = meta
	if err := s.content.UpdateProcessing(ctx, item.ID, meta); err != nil {
		return fmt.Errorf("record extraction failure: %w", err)
	}

	if meta.RetryCount >= domain.MaxExtractionRetries {
		item.Status = domain.StatusFailed
		if err := s.content.UpdateStatus(ctx, item.ID, domain.StatusFailed); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return fmt.Errorf("extraction failed after %d attempts: %w", meta.RetryCount, cause)
	}
	// Below the retry ceiling the item stays queue-eligible.
	return fmt.Errorf("extraction attempt %d: %w", meta.RetryCount, cause)
}

// RetentionSweep deletes processed and failed items past the retention
// window.
func (s *Service) RetentionSweep(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "collector.retention-sweep")
	defer span.End()

	deleted, err := s.content.DeleteTerminalOlderThan(ctx, time.Now().Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	if deleted > 0 {
		log.Printf("retention sweep deleted %d item(s)", deleted)
	}
	return deleted, nil
}

// matchesKeywords applies the channel's keyword filter. Primary channels
// collect everything; secondary channels with no configured keywords also
// match everything.
func matchesKeywords(ch domain.Channel, text string) bool {
	if ch.IsPrimary {
		return true
	}
	if len(ch.Keywords) == 0 {
		log.Printf("channel %d has no keywords, collecting everything", ch.ID)
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range ch.Keywords {
		if kw.Term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw.Term)) {
			return true
		}
	}
	return false
}
