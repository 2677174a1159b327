package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestCoinGeckoFetchQuote(t *testing.T) {
	t.Parallel()

	p := NewCoinGeckoProvider(testTracer)
	p.baseURL = "http://example"
	p.limiter = NewRateLimiter(10, time.Millisecond)
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.Path, "/simple/price") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if !strings.Contains(req.URL.RawQuery, "ids=bitcoin") {
				t.Fatalf("unexpected query: %s", req.URL.RawQuery)
			}
			return jsonResponse(t, http.StatusOK, map[string]map[string]float64{
				"bitcoin": {"usd": 97000, "usd_24h_vol": 45e9, "usd_24h_change": 2.34},
			}), nil
		}),
	}

	snap, err := p.FetchQuote(context.Background(), "btc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap == nil || snap.PriceUSD != 97000 || snap.Symbol != "BTC" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Source != "coingecko" {
		t.Fatalf("source = %q", snap.Source)
	}
}

func TestCoinGeckoUnknownSymbol(t *testing.T) {
	t.Parallel()

	p := NewCoinGeckoProvider(testTracer)
	snap, err := p.FetchQuote(context.Background(), "NOTACOIN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot for unknown symbol, got %+v", snap)
	}
}

func TestCoinGeckoAPIError(t *testing.T) {
	t.Parallel()

	p := NewCoinGeckoProvider(testTracer)
	p.baseURL = "http://example"
	p.limiter = NewRateLimiter(10, time.Millisecond)
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(strings.NewReader("throttled")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if _, err := p.FetchQuote(context.Background(), "BTC"); err == nil {
		t.Fatal("expected error on 429")
	}
}
