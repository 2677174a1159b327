package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const timedTextBaseURL = "https://video.google.com/timedtext"

// CaptionProvider scrapes published caption tracks from the timedtext
// endpoint. The cheapest rung of the transcript fallback chain: no key, no
// quota, but only works when the uploader published captions.
type CaptionProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewCaptionProvider(tracer trace.Tracer) *CaptionProvider {
	return &CaptionProvider{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: timedTextBaseURL,
		tracer:  tracer,
	}
}

// FetchCaptions returns caption text for one video and language code. An
// empty string with nil error means the track does not exist.
func (p *CaptionProvider) FetchCaptions(ctx context.Context, videoID, lang string) (string, error) {
	_, span := p.tracer.Start(ctx, "captions.fetch")
	defer span.End()

	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", fmt.Errorf("video id is required")
	}

	url := fmt.Sprintf("%s?lang=%s&v=%s", p.baseURL, lang, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("caption fetch error %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	// A missing track often comes back as an empty 200 body.
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	var doc struct {
		Texts []struct {
			Content string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse captions: %w", err)
	}

	var sb strings.Builder
	for _, line := range doc.Texts {
		text := strings.TrimSpace(line.Content)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
