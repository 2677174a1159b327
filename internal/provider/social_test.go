package provider

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestSocialFetchPostSyndication(t *testing.T) {
	t.Parallel()

	p := NewSocialProvider(testTracer)
	p.baseURL = "http://example/tweet-result"
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("id") != "12345" {
				t.Fatalf("unexpected query: %s", req.URL.RawQuery)
			}
			body := `{"text":"$BTC to 150k by summer","user":{"screen_name":"cryptoguru"},"created_at":"Mon Jan 02 15:04:05 +0000 2026"}`
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(body)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	post, err := p.FetchPost(context.Background(), "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.Text != "$BTC to 150k by summer" || post.AuthorID != "cryptoguru" {
		t.Fatalf("unexpected post: %+v", post)
	}
	if !strings.Contains(post.URL, "cryptoguru/status/12345") {
		t.Fatalf("url = %q", post.URL)
	}
}

func TestSocialFetchPostScrapeFallback(t *testing.T) {
	t.Parallel()

	page := `<html><head>
<meta property="og:title" content="Crypto Guru on X"/>
<meta property="og:description" content="ETH looks bearish into the merge anniversary"/>
</head><body></body></html>`

	p := NewSocialProvider(testTracer)
	p.baseURL = "http://example/tweet-result"
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if strings.Contains(req.URL.Host, "example") {
				// syndication endpoint down
				return &http.Response{
					StatusCode: http.StatusServiceUnavailable,
					Body:       io.NopCloser(strings.NewReader("")),
					Header:     make(http.Header),
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(page)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	post, err := p.FetchPost(context.Background(), "99999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(post.Text, "ETH looks bearish") {
		t.Fatalf("text = %q", post.Text)
	}
	if post.AuthorID != "Crypto Guru" {
		t.Fatalf("author = %q", post.AuthorID)
	}
}
