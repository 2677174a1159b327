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

const youtubeFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"

// VideoItem is one entry of a channel's upload feed.
type VideoItem struct {
	VideoID     string
	Title       string
	Description string
	URL         string
	PublishedAt time.Time
}

// YouTubeProvider lists a channel's recent uploads through the public Atom
// feed, which needs no API key and covers the most recent ~15 videos.
type YouTubeProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewYouTubeProvider(tracer trace.Tracer) *YouTubeProvider {
	return &YouTubeProvider{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: youtubeFeedBaseURL,
		tracer:  tracer,
	}
}

func (p *YouTubeProvider) FetchRecentVideos(ctx context.Context, channelID string, maxItems int) ([]VideoItem, error) {
	_, span := p.tracer.Start(ctx, "youtube.fetch-recent-videos")
	defer span.End()

	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fmt.Errorf("channel id is required")
	}
	if maxItems <= 0 {
		maxItems = 15
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?channel_id="+channelID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/atom+xml, application/xml, text/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("youtube feed error %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var feed struct {
		Entries []struct {
			VideoID   string `xml:"videoId"`
			Title     string `xml:"title"`
			Published string `xml:"published"`
			Link      struct {
				Href string `xml:"href,attr"`
			} `xml:"link"`
			Group struct {
				Description string `xml:"description"`
			} `xml:"group"`
		} `xml:"entry"`
	}
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse youtube feed: %w", err)
	}

	items := make([]VideoItem, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry.VideoID == "" {
			continue
		}
		item := VideoItem{
			VideoID:     entry.VideoID,
			Title:       strings.TrimSpace(entry.Title),
			Description: strings.TrimSpace(entry.Group.Description),
			URL:         entry.Link.Href,
		}
		if item.URL == "" {
			item.URL = "https://www.youtube.com/watch?v=" + entry.VideoID
		}
		if ts, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			item.PublishedAt = ts
		}
		items = append(items, item)
		if len(items) >= maxItems {
			break
		}
	}
	return items, nil
}
