package transcript

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"foresight/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// MinUsableChars is the threshold below which a fetched transcript is treated
// as noise and the chain moves on to the next method.
const MinUsableChars = 50

// MaxTranscribeAttempts bounds speech-to-text retries per item. Below the
// bound a failed transcription leaves the item in its partial state, with the
// audio file on disk, so the next sweep retries from the persisted path.
const MaxTranscribeAttempts = 3

// ErrRetryLater reports a transcription failure worth retrying on a later
// sweep. The caller must not advance the item past its current state.
var ErrRetryLater = errors.New("transcription pending retry")

// languageAttempts is the order caption and transcript lookups are tried in.
var languageAttempts = []string{"en", "en-US", "en-GB", "auto"}

type CaptionSource interface {
	FetchCaptions(ctx context.Context, videoID, lang string) (string, error)
}

type TranscriptAPISource interface {
	FetchTranscript(ctx context.Context, videoID, lang string) (string, []domain.TranscriptSegment, error)
}

type AudioFetcher interface {
	FetchAudio(ctx context.Context, videoID, destDir string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, []domain.TranscriptSegment, error)
}

// StateSink persists per-item pipeline state as the chain advances, so a
// crashed run resumes instead of re-paying for completed steps.
type StateSink interface {
	UpdateStatus(ctx context.Context, id int64, status domain.ContentStatus) error
	UpdateProcessing(ctx context.Context, id int64, meta domain.ProcessingMetadata) error
}

// Result is the outcome of one acquisition. Source records which fallback
// tier produced the transcript ("captions_en", "transcript_api_en",
// "whisper_transcription", or "fallback" when everything failed).
type Result struct {
	Transcript string
	Source     string
	Segments   []domain.TranscriptSegment
}

type Service struct {
	tracer   trace.Tracer
	captions CaptionSource
	api      TranscriptAPISource
	audio    AudioFetcher
	asr      Transcriber
	sink     StateSink
	tempDir  string
}

func NewService(
	tracer trace.Tracer,
	captions CaptionSource,
	api TranscriptAPISource,
	audio AudioFetcher,
	asr Transcriber,
	sink StateSink,
	tempDir string,
) *Service {
	return &Service{
		tracer:   tracer,
		captions: captions,
		api:      api,
		audio:    audio,
		asr:      asr,
		sink:     sink,
		tempDir:  tempDir,
	}
}

// Acquire walks the fallback chain for one video item. It fails soft: when
// every method is exhausted the result carries an empty transcript and
// source "fallback", with the error recorded in the item's processing
// metadata rather than returned. The one exception is a transcription
// failure with attempts remaining, which returns ErrRetryLater so the item
// stays in its partial state and the downloaded audio gets another chance.
func (s *Service) Acquire(ctx context.Context, item *domain.ContentItem) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "transcript.acquire")
	defer span.End()

	videoID := item.SourceID

	// Tier 1: published captions, cheapest first.
	if s.captions != nil {
		for _, lang := range languageAttempts {
			text, err := s.captions.FetchCaptions(ctx, videoID, lang)
			if err != nil {
				log.Printf("captions %s for %s: %v", lang, videoID, err)
				continue
			}
			if usable(text) {
				return Result{Transcript: text, Source: "captions_" + lang}, nil
			}
		}
	}

	// Tier 2: independent hosted transcript API.
	if s.api != nil {
		for _, lang := range languageAttempts {
			text, segments, err := s.api.FetchTranscript(ctx, videoID, lang)
			if err != nil {
				log.Printf("transcript API %s for %s: %v", lang, videoID, err)
				continue
			}
			if usable(text) {
				return Result{Transcript: text, Source: "transcript_api_" + lang, Segments: segments}, nil
			}
		}
	}

	// Tier 3: audio download + speech-to-text.
	if s.audio != nil && s.asr != nil {
		return s.acquireFromAudio(ctx, item)
	}

	return Result{Source: "fallback"}, nil
}

func (s *Service) acquireFromAudio(ctx context.Context, item *domain.ContentItem) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "transcript.acquire-from-audio")
	defer span.End()

	meta := item.Processing
	audioPath := meta.AudioPath

	// A previously downloaded file still on disk skips the conversion API.
	if audioPath != "" {
		if _, err := os.Stat(audioPath); err != nil {
			audioPath = ""
		}
	}

	if audioPath == "" {
		s.setStatus(ctx, item, domain.StatusAudioDownloading)

		path, err := s.audio.FetchAudio(ctx, item.SourceID, s.tempDir)
		if err != nil {
			s.recordFailure(ctx, item, "audio_download", err)
			return Result{Source: "fallback"}, nil
		}
		audioPath = path

		// Persist the path before transcribing: a crash from here resumes at
		// the transcription step instead of re-downloading.
		meta = item.Processing
		meta.AudioPath = audioPath
		meta.LastStep = "audio_downloaded"
		item.Processing = meta
		if err := s.sink.UpdateProcessing(ctx, item.ID, meta); err != nil {
			log.Printf("persist audio path for item %d: %v", item.ID, err)
		}
		s.setStatus(ctx, item, domain.StatusAudioDownloaded)
	}

	s.setStatus(ctx, item, domain.StatusTranscribing)

	text, segments, err := s.asr.Transcribe(ctx, audioPath)
	if err != nil {
		// Keep the audio file for the next attempt.
		s.recordFailure(ctx, item, "transcription", err)
		if item.Processing.RetryCount < MaxTranscribeAttempts {
			return Result{}, ErrRetryLater
		}
		// Out of attempts: drop the audio and give up on this item's
		// transcript entirely.
		meta = item.Processing
		meta.AudioPath = ""
		item.Processing = meta
		if uerr := s.sink.UpdateProcessing(ctx, item.ID, meta); uerr != nil {
			log.Printf("clear audio path for item %d: %v", item.ID, uerr)
		}
		if rerr := os.Remove(audioPath); rerr != nil && !os.IsNotExist(rerr) {
			log.Printf("remove temp audio %s: %v", audioPath, rerr)
		}
		return Result{Source: "fallback"}, nil
	}

	meta = item.Processing
	meta.AudioPath = ""
	meta.LastStep = "transcribed"
	meta.LastError = ""
	meta.Segments = segments
	item.Processing = meta
	if err := s.sink.UpdateProcessing(ctx, item.ID, meta); err != nil {
		log.Printf("persist transcription metadata for item %d: %v", item.ID, err)
	}
	s.setStatus(ctx, item, domain.StatusTranscribed)

	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		log.Printf("remove temp audio %s: %v", audioPath, err)
	}

	return Result{Transcript: text, Source: "whisper_transcription", Segments: segments}, nil
}

func (s *Service) setStatus(ctx context.Context, item *domain.ContentItem, status domain.ContentStatus) {
	item.Status = status
	if err := s.sink.UpdateStatus(ctx, item.ID, status); err != nil {
		log.Printf("update status for item %d: %v", item.ID, err)
	}
}

func (s *Service) recordFailure(ctx context.Context, item *domain.ContentItem, step string, cause error) {
	meta := item.Processing
	meta.LastStep = step
	meta.LastError = fmt.Sprintf("%s: %v", step, cause)
	meta.RetryCount++
	item.Processing = meta
	if err := s.sink.UpdateProcessing(ctx, item.ID, meta); err != nil {
		log.Printf("record failure for item %d: %v", item.ID, err)
	}
}

func usable(text string) bool {
	return len(text) >= MinUsableChars
}
