package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"foresight/internal/domain"
	"foresight/internal/provider"
	"foresight/internal/transcript"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeContentStore struct {
	upserts   []domain.ContentItem
	statuses  map[int64]domain.ContentStatus
	metas     map[int64]domain.ProcessingMetadata
	data      map[int64]domain.ContentData
	queue     []domain.ContentItem
	collected map[string]bool
	deleted   int64
	sawSince  time.Time
	sawCutoff time.Time
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		statuses:  map[int64]domain.ContentStatus{},
		metas:     map[int64]domain.ProcessingMetadata{},
		data:      map[int64]domain.ContentData{},
		collected: map[string]bool{},
	}
}

func (f *fakeContentStore) UpsertItem(_ context.Context, item domain.ContentItem) (*domain.ContentItem, error) {
	f.upserts = append(f.upserts, item)
	item.ID = int64(len(f.upserts))
	return &item, nil
}

func (f *fakeContentStore) UpdateStatus(_ context.Context, id int64, status domain.ContentStatus) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeContentStore) UpdateProcessing(_ context.Context, id int64, meta domain.ProcessingMetadata) error {
	f.metas[id] = meta
	return nil
}

func (f *fakeContentStore) UpdateData(_ context.Context, id int64, data domain.ContentData) error {
	f.data[id] = data
	return nil
}

func (f *fakeContentStore) ProcessingQueue(_ context.Context, limit int) ([]domain.ContentItem, error) {
	if limit > len(f.queue) {
		limit = len(f.queue)
	}
	return f.queue[:limit], nil
}

func (f *fakeContentStore) CollectedSince(_ context.Context, _ domain.SourceType, sourceID string, since time.Time) (bool, error) {
	f.sawSince = since
	return f.collected[sourceID], nil
}

func (f *fakeContentStore) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.sawCutoff = cutoff
	return f.deleted, nil
}

type fakeVideoSource struct {
	videos   []provider.VideoItem
	err      error
	sawLimit int
}

func (f *fakeVideoSource) FetchRecentVideos(_ context.Context, _ string, maxItems int) ([]provider.VideoItem, error) {
	f.sawLimit = maxItems
	return f.videos, f.err
}

type fakePostSource struct {
	post *provider.SocialPost
	err  error
}

func (f *fakePostSource) FetchPost(_ context.Context, _ string) (*provider.SocialPost, error) {
	return f.post, f.err
}

type fakeAcquirer struct {
	result transcript.Result
	err    error
	calls  int
}

func (f *fakeAcquirer) Acquire(_ context.Context, _ *domain.ContentItem) (transcript.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeExtractor struct {
	err   error
	calls int
}

func (f *fakeExtractor) ProcessItem(_ context.Context, item *domain.ContentItem) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	item.Status = domain.StatusProcessed
	return nil
}

func secondaryChannel(keywords ...string) domain.Channel {
	ch := domain.Channel{
		ID:                7,
		ForecasterID:      3,
		ChannelType:       domain.ChannelTypeVideo,
		ExternalID:        "UCabc",
		IsActive:          true,
		CollectionEnabled: true,
	}
	for _, term := range keywords {
		ch.Keywords = append(ch.Keywords, domain.Keyword{Term: term})
	}
	return ch
}

func TestCollectChannelKeywordFilter(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	videos := &fakeVideoSource{videos: []provider.VideoItem{
		{VideoID: "v1", Title: "Bitcoin heading to 100k", URL: "https://youtu.be/v1", PublishedAt: time.Now()},
		{VideoID: "v2", Title: "My morning routine", URL: "https://youtu.be/v2", PublishedAt: time.Now()},
	}}
	svc := NewService(testTracer, store, videos, &fakePostSource{}, &fakeAcquirer{}, &fakeExtractor{}, 0, 0, 0)

	stats, err := svc.CollectChannel(context.Background(), secondaryChannel("bitcoin"))
	if err != nil {
		t.Fatalf("CollectChannel: %v", err)
	}
	if stats.Collected != 1 || stats.Filtered != 1 {
		t.Errorf("stats = %+v, want 1 collected / 1 filtered", stats)
	}
	if len(store.upserts) != 1 || store.upserts[0].SourceID != "v1" {
		t.Errorf("upserted items = %+v", store.upserts)
	}
}

func TestCollectChannelNoKeywordsCollectsEverything(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	videos := &fakeVideoSource{videos: []provider.VideoItem{
		{VideoID: "v1", Title: "anything at all", PublishedAt: time.Now()},
	}}
	svc := NewService(testTracer, store, videos, &fakePostSource{}, &fakeAcquirer{}, &fakeExtractor{}, 0, 0, 0)

	stats, err := svc.CollectChannel(context.Background(), secondaryChannel())
	if err != nil {
		t.Fatalf("CollectChannel: %v", err)
	}
	if stats.Collected != 1 || stats.Filtered != 0 {
		t.Errorf("stats = %+v, want everything collected", stats)
	}
}

func TestCollectChannelSkipsRecentlyCollected(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.collected["v1"] = true
	videos := &fakeVideoSource{videos: []provider.VideoItem{
		{VideoID: "v1", Title: "bitcoin update", PublishedAt: time.Now()},
	}}
	svc := NewService(testTracer, store, videos, &fakePostSource{}, &fakeAcquirer{}, &fakeExtractor{}, 0, 0, 0)

	stats, err := svc.CollectChannel(context.Background(), secondaryChannel("bitcoin"))
	if err != nil {
		t.Fatalf("CollectChannel: %v", err)
	}
	if stats.Skipped != 1 || stats.Collected != 0 {
		t.Errorf("stats = %+v, want 1 skipped", stats)
	}
	if len(store.upserts) != 0 {
		t.Errorf("upserts = %d, want 0", len(store.upserts))
	}
}

func TestCollectChannelUsesConfiguredLimits(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	videos := &fakeVideoSource{videos: []provider.VideoItem{
		{VideoID: "v1", Title: "bitcoin update", PublishedAt: time.Now()},
	}}
	svc := NewService(testTracer, store, videos, &fakePostSource{}, &fakeAcquirer{}, &fakeExtractor{}, 5, 48*time.Hour, 0)

	if _, err := svc.CollectChannel(context.Background(), secondaryChannel("bitcoin")); err != nil {
		t.Fatalf("CollectChannel: %v", err)
	}
	if videos.sawLimit != 5 {
		t.Errorf("fetch limit = %d, want 5", videos.sawLimit)
	}
	wantSince := time.Now().Add(-48 * time.Hour)
	if diff := store.sawSince.Sub(wantSince); diff < -time.Minute || diff > time.Minute {
		t.Errorf("freshness bound = %v, want ~%v", store.sawSince, wantSince)
	}
}

func TestCollectPost(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	posts := &fakePostSource{post: &provider.SocialPost{
		PostID:      "1870000000000000000",
		Text:        "ETH to 5000 by March",
		URL:         "https://example.com/p/187",
		PublishedAt: time.Now(),
	}}
	svc := NewService(testTracer, store, &fakeVideoSource{}, posts, &fakeAcquirer{}, &fakeExtractor{}, 0, 0, 0)

	ch := secondaryChannel("eth")
	ch.ChannelType = domain.ChannelTypeSocial
	stats, err := svc.CollectPost(context.Background(), ch, "1870000000000000000")
	if err != nil {
		t.Fatalf("CollectPost: %v", err)
	}
	if stats.Collected != 1 {
		t.Errorf("stats = %+v, want 1 collected", stats)
	}
	if store.upserts[0].SourceType != domain.SourceTypePost {
		t.Errorf("source type = %s", store.upserts[0].SourceType)
	}
}

func TestProcessQueueTranscribesThenExtracts(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.queue = []domain.ContentItem{{
		ID:         1,
		SourceType: domain.SourceTypeVideo,
		SourceID:   "v1",
		Status:     domain.StatusCollected,
		Data:       domain.ContentData{Title: "BTC outlook"},
	}}
	acquirer := &fakeAcquirer{result: transcript.Result{Transcript: "bitcoin to 100k", Source: "captions_en"}}
	extractor := &fakeExtractor{}
	svc := NewService(testTracer, store, &fakeVideoSource{}, &fakePostSource{}, acquirer, extractor, 0, 0, 0)

	processed, err := svc.ProcessQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
	if acquirer.calls != 1 || extractor.calls != 1 {
		t.Errorf("acquire=%d extract=%d, want 1/1", acquirer.calls, extractor.calls)
	}
	if store.data[1].Transcript != "bitcoin to 100k" || store.data[1].TranscriptSource != "captions_en" {
		t.Errorf("persisted data = %+v", store.data[1])
	}
	if store.statuses[1] != domain.StatusTranscribed {
		t.Errorf("status = %s, want transcribed", store.statuses[1])
	}
}

func TestProcessQueuePostSkipsTranscript(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.queue = []domain.ContentItem{{
		ID:         2,
		SourceType: domain.SourceTypePost,
		SourceID:   "187",
		Status:     domain.StatusCollected,
		Data:       domain.ContentData{Title: "SOL looks strong"},
	}}
	acquirer := &fakeAcquirer{}
	svc := NewService(testTracer, store, &fakeVideoSource{}, &fakePostSource{}, acquirer, &fakeExtractor{}, 0, 0, 0)

	if _, err := svc.ProcessQueue(context.Background(), 10); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if acquirer.calls != 0 {
		t.Errorf("transcript acquired for a post")
	}
}

func TestProcessQueueDefersRetryableTranscription(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.queue = []domain.ContentItem{{
		ID:         4,
		SourceType: domain.SourceTypeVideo,
		SourceID:   "v4",
		Status:     domain.StatusTranscribing,
		Data:       domain.ContentData{Title: "gold forecast"},
		Processing: domain.ProcessingMetadata{AudioPath: "/tmp/v4.mp3", RetryCount: 1},
	}}
	acquirer := &fakeAcquirer{err: transcript.ErrRetryLater}
	extractor := &fakeExtractor{}
	svc := NewService(testTracer, store, &fakeVideoSource{}, &fakePostSource{}, acquirer, extractor, 0, 0, 0)

	processed, err := svc.ProcessQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor ran %d time(s) on a deferred item", extractor.calls)
	}
	if _, ok := store.data[4]; ok {
		t.Errorf("empty transcript persisted for deferred item")
	}
	if status, ok := store.statuses[4]; ok {
		t.Errorf("status advanced to %s, want item left in place", status)
	}
}

func TestProcessQueueRetriesBeforeFailing(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	item := domain.ContentItem{
		ID:         3,
		SourceType: domain.SourceTypeVideo,
		SourceID:   "v3",
		Status:     domain.StatusTranscribed,
		Data:       domain.ContentData{Title: "t", Transcript: "x", TranscriptSource: "captions_en"},
	}
	extractor := &fakeExtractor{err: errors.New("model unavailable")}
	svc := NewService(testTracer, store, &fakeVideoSource{}, &fakePostSource{}, &fakeAcquirer{}, extractor, 0, 0, 0)

	for attempt := 1; attempt <= domain.MaxExtractionRetries; attempt++ {
		store.queue = []domain.ContentItem{item}
		processed, err := svc.ProcessQueue(context.Background(), 10)
		if err != nil {
			t.Fatalf("ProcessQueue attempt %d: %v", attempt, err)
		}
		if processed != 0 {
			t.Fatalf("attempt %d counted as processed", attempt)
		}
		item.Processing = store.metas[3]

		if attempt < domain.MaxExtractionRetries {
			if status, ok := store.statuses[3]; ok && status == domain.StatusFailed {
				t.Fatalf("item failed after %d attempt(s)", attempt)
			}
		}
	}

	if store.statuses[3] != domain.StatusFailed {
		t.Errorf("status = %s after %d attempts, want failed", store.statuses[3], domain.MaxExtractionRetries)
	}
	if store.metas[3].RetryCount != domain.MaxExtractionRetries {
		t.Errorf("retry count = %d", store.metas[3].RetryCount)
	}
}

func TestRetentionSweep(t *testing.T) {
	t.Parallel()

	store := newFakeContentStore()
	store.deleted = 4
	svc := NewService(testTracer, store, &fakeVideoSource{}, &fakePostSource{}, &fakeAcquirer{}, &fakeExtractor{}, 0, 0, 10*24*time.Hour)

	deleted, err := svc.RetentionSweep(context.Background())
	if err != nil {
		t.Fatalf("RetentionSweep: %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}
	wantCutoff := time.Now().Add(-10 * 24 * time.Hour)
	if diff := store.sawCutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want ~%v", store.sawCutoff, wantCutoff)
	}
}
