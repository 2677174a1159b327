package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/trace"
)

const socialSyndicationBaseURL = "https://cdn.syndication.twimg.com/tweet-result"

// SocialPost is one fetched post from a social handle.
type SocialPost struct {
	PostID      string
	AuthorID    string
	Text        string
	URL         string
	PublishedAt time.Time
}

// SocialProvider fetches public posts: the unauthenticated syndication JSON
// endpoint first, then an og:-tag page scrape when the endpoint is
// unavailable for the post.
type SocialProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tracer    trace.Tracer
}

func NewSocialProvider(tracer trace.Tracer) *SocialProvider {
	return &SocialProvider{
		client:    &http.Client{Timeout: 20 * time.Second},
		baseURL:   socialSyndicationBaseURL,
		userAgent: "Mozilla/5.0 (compatible; foresight/1.0)",
		tracer:    tracer,
	}
}

type syndicationResponse struct {
	Text string `json:"text"`
	User struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	CreatedAt string `json:"created_at"`
}

func (p *SocialProvider) FetchPost(ctx context.Context, postID string) (*SocialPost, error) {
	_, span := p.tracer.Start(ctx, "social.fetch-post")
	defer span.End()

	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, fmt.Errorf("post id is required")
	}

	post, err := p.fetchSyndication(ctx, postID)
	if err == nil && post != nil {
		return post, nil
	}
	return p.scrapePost(ctx, postID)
}

func (p *SocialProvider) fetchSyndication(ctx context.Context, postID string) (*SocialPost, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?id="+postID+"&lang=en", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("syndication error %d", resp.StatusCode)
	}

	var out syndicationResponse
	if err := decodeJSONBody(resp, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("empty syndication text")
	}

	post := &SocialPost{
		PostID:   postID,
		AuthorID: out.User.ScreenName,
		Text:     out.Text,
		URL:      postURL(out.User.ScreenName, postID),
	}
	if ts, err := time.Parse(time.RubyDate, out.CreatedAt); err == nil {
		post.PublishedAt = ts
	}
	return post, nil
}

func (p *SocialProvider) scrapePost(ctx context.Context, postID string) (*SocialPost, error) {
	url := postURL("i", postID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post page error %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse post page: %w", err)
	}

	text, _ := doc.Find(`meta[property="og:description"]`).Attr("content")
	title, _ := doc.Find(`meta[property="og:title"]`).Attr("content")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("post %s has no scrapable text", postID)
	}

	author := ""
	if idx := strings.Index(title, " on "); idx > 0 {
		author = strings.TrimSpace(title[:idx])
	}
	return &SocialPost{
		PostID:   postID,
		AuthorID: author,
		Text:     text,
		URL:      url,
	}, nil
}

func postURL(handle, postID string) string {
	if handle == "" {
		handle = "i"
	}
	return fmt.Sprintf("https://x.com/%s/status/%s", handle, postID)
}
