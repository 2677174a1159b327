package transcript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"foresight/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

const longText = "bitcoin will hit one hundred thousand dollars before the end of the year, mark my words"

type fakeCaptions struct {
	byLang map[string]string
	calls  []string
}

func (f *fakeCaptions) FetchCaptions(_ context.Context, _, lang string) (string, error) {
	f.calls = append(f.calls, lang)
	return f.byLang[lang], nil
}

type fakeTranscriptAPI struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriptAPI) FetchTranscript(_ context.Context, _, _ string) (string, []domain.TranscriptSegment, error) {
	f.calls++
	return f.text, nil, f.err
}

type fakeAudio struct {
	path  string
	err   error
	calls int
}

func (f *fakeAudio) FetchAudio(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeASR struct {
	text     string
	err      error
	calls    int
	sawPaths []string
}

func (f *fakeASR) Transcribe(_ context.Context, audioPath string) (string, []domain.TranscriptSegment, error) {
	f.calls++
	f.sawPaths = append(f.sawPaths, audioPath)
	return f.text, nil, f.err
}

type sinkCall struct {
	kind   string
	status domain.ContentStatus
	meta   domain.ProcessingMetadata
}

type fakeSink struct {
	calls []sinkCall
}

func (f *fakeSink) UpdateStatus(_ context.Context, _ int64, status domain.ContentStatus) error {
	f.calls = append(f.calls, sinkCall{kind: "status", status: status})
	return nil
}

func (f *fakeSink) UpdateProcessing(_ context.Context, _ int64, meta domain.ProcessingMetadata) error {
	f.calls = append(f.calls, sinkCall{kind: "processing", meta: meta})
	return nil
}

func writeTempAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("mp3 bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAcquireCaptionsShortCircuit(t *testing.T) {
	t.Parallel()

	captions := &fakeCaptions{byLang: map[string]string{"en": longText}}
	api := &fakeTranscriptAPI{text: longText}
	audio := &fakeAudio{}
	svc := NewService(testTracer, captions, api, audio, &fakeASR{}, &fakeSink{}, t.TempDir())

	item := &domain.ContentItem{ID: 1, SourceID: "abc123"}
	res, err := svc.Acquire(context.Background(), item)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Source != "captions_en" {
		t.Errorf("source = %q, want captions_en", res.Source)
	}
	if res.Transcript != longText {
		t.Errorf("unexpected transcript %q", res.Transcript)
	}
	if api.calls != 0 || audio.calls != 0 {
		t.Errorf("later tiers invoked: api=%d audio=%d", api.calls, audio.calls)
	}
}

func TestAcquireShortCaptionsFallThrough(t *testing.T) {
	t.Parallel()

	// Under the usable threshold in every language.
	captions := &fakeCaptions{byLang: map[string]string{"en": "[Music]"}}
	api := &fakeTranscriptAPI{text: longText}
	svc := NewService(testTracer, captions, api, nil, nil, &fakeSink{}, t.TempDir())

	res, err := svc.Acquire(context.Background(), &domain.ContentItem{ID: 2, SourceID: "abc123"})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Source != "transcript_api_en" {
		t.Errorf("source = %q, want transcript_api_en", res.Source)
	}
	if len(captions.calls) != len([]string{"en", "en-US", "en-GB", "auto"}) {
		t.Errorf("caption languages tried = %v", captions.calls)
	}
}

func TestAcquireAudioPathPersistedBeforeTranscription(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audioFile := writeTempAudio(t, dir, "abc123.mp3")

	sink := &fakeSink{}
	asr := &fakeASR{text: longText}
	svc := NewService(testTracer, nil, nil, &fakeAudio{path: audioFile}, asr, sink, dir)

	item := &domain.ContentItem{ID: 3, SourceID: "abc123"}
	res, err := svc.Acquire(context.Background(), item)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Source != "whisper_transcription" {
		t.Errorf("source = %q, want whisper_transcription", res.Source)
	}

	// The path must land in metadata before the transcribing status flip.
	pathPersisted := -1
	transcribing := -1
	for i, c := range sink.calls {
		if c.kind == "processing" && c.meta.AudioPath == audioFile && pathPersisted < 0 {
			pathPersisted = i
		}
		if c.kind == "status" && c.status == domain.StatusTranscribing {
			transcribing = i
		}
	}
	if pathPersisted < 0 {
		t.Fatal("audio path never persisted")
	}
	if transcribing < 0 || pathPersisted > transcribing {
		t.Errorf("audio path persisted at call %d, transcribing status at %d", pathPersisted, transcribing)
	}

	// Success deletes the temp file.
	if _, statErr := os.Stat(audioFile); !os.IsNotExist(statErr) {
		t.Errorf("temp audio %s not deleted after success", audioFile)
	}
}

func TestAcquireResumesExistingAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audioFile := writeTempAudio(t, dir, "resume.mp3")

	audio := &fakeAudio{path: filepath.Join(dir, "fresh.mp3")}
	asr := &fakeASR{text: longText}
	svc := NewService(testTracer, nil, nil, audio, asr, &fakeSink{}, dir)

	item := &domain.ContentItem{
		ID:         4,
		SourceID:   "resume",
		Processing: domain.ProcessingMetadata{AudioPath: audioFile, LastStep: "audio_downloaded"},
	}
	res, err := svc.Acquire(context.Background(), item)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if audio.calls != 0 {
		t.Errorf("audio re-downloaded %d time(s) despite file on disk", audio.calls)
	}
	if len(asr.sawPaths) != 1 || asr.sawPaths[0] != audioFile {
		t.Errorf("transcriber paths = %v, want [%s]", asr.sawPaths, audioFile)
	}
	if res.Transcript != longText {
		t.Errorf("unexpected transcript %q", res.Transcript)
	}
}

func TestAcquireStaleAudioPathRedownloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fresh := writeTempAudio(t, dir, "fresh.mp3")

	audio := &fakeAudio{path: fresh}
	svc := NewService(testTracer, nil, nil, audio, &fakeASR{text: longText}, &fakeSink{}, dir)

	item := &domain.ContentItem{
		ID:         5,
		SourceID:   "stale",
		Processing: domain.ProcessingMetadata{AudioPath: filepath.Join(dir, "gone.mp3")},
	}
	if _, err := svc.Acquire(context.Background(), item); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if audio.calls != 1 {
		t.Errorf("audio downloads = %d, want 1", audio.calls)
	}
}

func TestAcquireTranscriptionFailureKeepsAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audioFile := writeTempAudio(t, dir, "keep.mp3")

	sink := &fakeSink{}
	svc := NewService(testTracer, nil, nil, &fakeAudio{path: audioFile}, &fakeASR{err: errors.New("asr down")}, sink, dir)

	item := &domain.ContentItem{ID: 6, SourceID: "keep"}
	_, err := svc.Acquire(context.Background(), item)
	if !errors.Is(err, ErrRetryLater) {
		t.Fatalf("Acquire err = %v, want ErrRetryLater", err)
	}
	if _, statErr := os.Stat(audioFile); statErr != nil {
		t.Errorf("temp audio removed after failure: %v", statErr)
	}
	if item.Processing.AudioPath != audioFile {
		t.Errorf("audio path = %q, want %q kept for the retry", item.Processing.AudioPath, audioFile)
	}
	if item.Processing.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", item.Processing.RetryCount)
	}
	if !strings.Contains(item.Processing.LastError, "asr down") {
		t.Errorf("last error = %q", item.Processing.LastError)
	}
}

func TestAcquireTranscriptionFallsBackAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audioFile := writeTempAudio(t, dir, "spent.mp3")

	sink := &fakeSink{}
	svc := NewService(testTracer, nil, nil, &fakeAudio{path: audioFile}, &fakeASR{err: errors.New("asr down")}, sink, dir)

	item := &domain.ContentItem{
		ID:         8,
		SourceID:   "spent",
		Status:     domain.StatusTranscribing,
		Processing: domain.ProcessingMetadata{AudioPath: audioFile, RetryCount: MaxTranscribeAttempts - 1},
	}
	res, err := svc.Acquire(context.Background(), item)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Source != "fallback" || res.Transcript != "" {
		t.Errorf("result = %+v, want soft fallback", res)
	}
	if item.Processing.AudioPath != "" {
		t.Errorf("audio path = %q, want cleared once attempts are spent", item.Processing.AudioPath)
	}
	if _, statErr := os.Stat(audioFile); !os.IsNotExist(statErr) {
		t.Errorf("temp audio still on disk after giving up: %v", statErr)
	}
}

func TestAcquireAllTiersExhausted(t *testing.T) {
	t.Parallel()

	captions := &fakeCaptions{byLang: map[string]string{}}
	api := &fakeTranscriptAPI{err: errors.New("api down")}
	audio := &fakeAudio{err: errors.New("conversion failed")}
	svc := NewService(testTracer, captions, api, audio, &fakeASR{}, &fakeSink{}, t.TempDir())

	item := &domain.ContentItem{ID: 7, SourceID: "dead"}
	res, err := svc.Acquire(context.Background(), item)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Source != "fallback" || res.Transcript != "" {
		t.Errorf("result = %+v, want soft fallback", res)
	}
	if item.Processing.LastError == "" {
		t.Error("failure not recorded in metadata")
	}
}

func TestCleanOrphans(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := writeTempAudio(t, dir, "old.mp3")
	fresh := writeTempAudio(t, dir, "fresh.mp3")
	other := writeTempAudio(t, dir, "notes.txt")

	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	if removed := CleanOrphans(dir, OrphanMaxAge); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale audio survived the janitor")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh audio removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-audio file removed")
	}
}
