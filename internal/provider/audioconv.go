package provider

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"
)

const audioConvAPIHost = "youtube-mp36.p.rapidapi.com"

const (
	audioConvMaxAttempts = 10
	audioConvBaseDelay   = 2 * time.Second
)

// AudioConversionProvider requests an mp3 rendition of a video from the
// conversion API. The API is asynchronous: a request may come back as
// "processing", in which case the caller's file is not ready yet and we poll
// with exponential backoff (base * 1.2^attempt) up to a bounded attempt count.
type AudioConversionProvider struct {
	client      *resty.Client
	download    *http.Client
	tracer      trace.Tracer
	apiKey      string
	baseDelay   time.Duration
	maxAttempts int
}

func NewAudioConversionProvider(tracer trace.Tracer, apiKey string) *AudioConversionProvider {
	client := resty.New()
	client.SetBaseURL("https://" + audioConvAPIHost)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("x-rapidapi-host", audioConvAPIHost)

	return &AudioConversionProvider{
		client:      client,
		download:    &http.Client{Timeout: 5 * time.Minute},
		tracer:      tracer,
		apiKey:      apiKey,
		baseDelay:   audioConvBaseDelay,
		maxAttempts: audioConvMaxAttempts,
	}
}

type audioConvResponse struct {
	Status string `json:"status"`
	Link   string `json:"link"`
	Title  string `json:"title"`
	Msg    string `json:"msg"`
}

// FetchAudio converts the video and downloads the result into destDir,
// returning the file path. The file is keyed by video id so concurrent runs
// for different videos never collide.
func (p *AudioConversionProvider) FetchAudio(ctx context.Context, videoID, destDir string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "audio-conv.fetch-audio")
	defer span.End()

	if p.apiKey == "" {
		return "", fmt.Errorf("audio conversion API key not configured")
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", fmt.Errorf("video id is required")
	}

	link, err := p.awaitConversion(ctx, videoID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(destDir, videoID+".mp3")
	if err := p.downloadFile(ctx, link, path); err != nil {
		return "", err
	}
	return path, nil
}

func (p *AudioConversionProvider) awaitConversion(ctx context.Context, videoID string) (string, error) {
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		var out audioConvResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetHeader("x-rapidapi-key", p.apiKey).
			SetQueryParam("id", videoID).
			SetResult(&out).
			Get("/dl")
		if err != nil {
			return "", fmt.Errorf("audio conversion request for %s: %w", videoID, err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("audio conversion API error %d: %s", resp.StatusCode(), resp.String())
		}

		switch strings.ToLower(out.Status) {
		case "ok":
			if out.Link == "" {
				return "", fmt.Errorf("audio conversion for %s returned ok without a link", videoID)
			}
			return out.Link, nil
		case "processing", "in process":
			delay := time.Duration(float64(p.baseDelay) * math.Pow(1.2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		case "fail", "failed", "error":
			return "", fmt.Errorf("audio conversion for %s failed: %s", videoID, out.Msg)
		default:
			return "", fmt.Errorf("audio conversion for %s returned unknown status %q", videoID, out.Status)
		}
	}
	return "", fmt.Errorf("audio conversion for %s still processing after %d attempts", videoID, p.maxAttempts)
}

func (p *AudioConversionProvider) downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.download.Do(req)
	if err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download audio error %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return fmt.Errorf("write audio file: %w", err)
	}
	return nil
}
