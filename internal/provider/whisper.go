package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"foresight/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"
)

const whisperAPIHost = "openai-whisper-speech-to-text-api.p.rapidapi.com"

// MaxAudioFileBytes is the ASR provider's upload ceiling. Oversized files are
// rejected before the upload is attempted.
const MaxAudioFileBytes = 25 * 1024 * 1024

const (
	whisperMaxRetries    = 4
	whisperBaseDelay     = 5 * time.Second
	whisperUploadTimeout = 5 * time.Minute
)

// ErrAudioTooLarge reports a file over the provider's size ceiling; the
// caller must not retry with the same file.
var ErrAudioTooLarge = errors.New("audio file exceeds provider size limit")

// WhisperProvider transcribes an audio file through a hosted speech-to-text
// API. Rate-limit responses are retried with base * 2^attempt backoff,
// honoring a server Retry-After header when one is sent; any other error
// propagates immediately.
type WhisperProvider struct {
	client     *resty.Client
	tracer     trace.Tracer
	apiKey     string
	baseDelay  time.Duration
	maxRetries int
}

func NewWhisperProvider(tracer trace.Tracer, apiKey string) *WhisperProvider {
	client := resty.New()
	client.SetBaseURL("https://" + whisperAPIHost)
	client.SetTimeout(whisperUploadTimeout)
	client.SetHeader("x-rapidapi-host", whisperAPIHost)

	return &WhisperProvider{
		client:     client,
		tracer:     tracer,
		apiKey:     apiKey,
		baseDelay:  whisperBaseDelay,
		maxRetries: whisperMaxRetries,
	}
}

type whisperResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

func (p *WhisperProvider) Transcribe(ctx context.Context, audioPath string) (string, []domain.TranscriptSegment, error) {
	ctx, span := p.tracer.Start(ctx, "whisper.transcribe")
	defer span.End()

	if p.apiKey == "" {
		return "", nil, fmt.Errorf("whisper API key not configured")
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return "", nil, fmt.Errorf("stat audio file: %w", err)
	}
	if info.Size() > MaxAudioFileBytes {
		return "", nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrAudioTooLarge, info.Size(), MaxAudioFileBytes)
	}

	for attempt := 0; ; attempt++ {
		var out whisperResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetHeader("x-rapidapi-key", p.apiKey).
			SetFile("file", audioPath).
			SetFormData(map[string]string{"type": "transcribe"}).
			SetResult(&out).
			Post("/transcribe")
		if err != nil {
			return "", nil, fmt.Errorf("whisper upload: %w", err)
		}

		if resp.StatusCode() == 429 {
			if attempt >= p.maxRetries {
				return "", nil, fmt.Errorf("whisper rate limited after %d retries", p.maxRetries)
			}
			delay := time.Duration(float64(p.baseDelay) * math.Pow(2, float64(attempt)))
			if retryAfter := parseRetryAfter(resp.Header().Get("Retry-After")); retryAfter > delay {
				delay = retryAfter
			}
			select {
			case <-ctx.Done():
				return "", nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		if resp.IsError() {
			return "", nil, fmt.Errorf("whisper API error %d: %s", resp.StatusCode(), resp.String())
		}

		text := strings.TrimSpace(out.Text)
		segments := make([]domain.TranscriptSegment, 0, len(out.Segments))
		for _, seg := range out.Segments {
			segText := strings.TrimSpace(seg.Text)
			if segText == "" {
				continue
			}
			segments = append(segments, domain.TranscriptSegment{
				Text:    segText,
				StartMS: int64(seg.Start * 1000),
				EndMS:   int64(seg.End * 1000),
			})
		}
		return text, segments, nil
	}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
