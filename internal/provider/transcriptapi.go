package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"foresight/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"
)

const transcriptAPIHost = "youtube-transcript3.p.rapidapi.com"

// TranscriptAPIProvider is the second rung of the fallback chain: an
// independent hosted transcript source, keyed and metered, tried only when
// caption scraping produced nothing usable.
type TranscriptAPIProvider struct {
	client *resty.Client
	tracer trace.Tracer
	apiKey string
}

func NewTranscriptAPIProvider(tracer trace.Tracer, apiKey string) *TranscriptAPIProvider {
	client := resty.New()
	client.SetBaseURL("https://" + transcriptAPIHost)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("x-rapidapi-host", transcriptAPIHost)

	return &TranscriptAPIProvider{
		client: client,
		tracer: tracer,
		apiKey: apiKey,
	}
}

type transcriptAPIResponse struct {
	Success    bool `json:"success"`
	Transcript []struct {
		Text     string  `json:"text"`
		Offset   float64 `json:"offset"`
		Duration float64 `json:"duration"`
	} `json:"transcript"`
}

// FetchTranscript returns the transcript text and per-segment timestamps for
// one video and language. Empty text with nil error means no transcript.
func (p *TranscriptAPIProvider) FetchTranscript(ctx context.Context, videoID, lang string) (string, []domain.TranscriptSegment, error) {
	_, span := p.tracer.Start(ctx, "transcript-api.fetch")
	defer span.End()

	if p.apiKey == "" {
		return "", nil, fmt.Errorf("transcript API key not configured")
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", nil, fmt.Errorf("video id is required")
	}

	var out transcriptAPIResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("x-rapidapi-key", p.apiKey).
		SetQueryParams(map[string]string{
			"videoId": videoID,
			"lang":    lang,
		}).
		SetResult(&out).
		Get("/api/transcript")
	if err != nil {
		return "", nil, fmt.Errorf("fetch transcript for %s: %w", videoID, err)
	}
	if resp.StatusCode() == 404 {
		return "", nil, nil
	}
	if resp.IsError() {
		return "", nil, fmt.Errorf("transcript API error %d: %s", resp.StatusCode(), resp.String())
	}
	if !out.Success || len(out.Transcript) == 0 {
		return "", nil, nil
	}

	var sb strings.Builder
	segments := make([]domain.TranscriptSegment, 0, len(out.Transcript))
	for _, row := range out.Transcript {
		text := strings.TrimSpace(row.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
		startMS := int64(row.Offset * 1000)
		segments = append(segments, domain.TranscriptSegment{
			Text:    text,
			StartMS: startMS,
			EndMS:   startMS + int64(row.Duration*1000),
		})
	}
	return sb.String(), segments, nil
}
