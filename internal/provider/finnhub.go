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

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubProvider serves stock, ETF, index, commodity and currency quotes, and
// doubles as the secondary crypto source via Binance pair symbols.
type FinnhubProvider struct {
	client *resty.Client
	tracer trace.Tracer
	apiKey string
}

func NewFinnhubProvider(tracer trace.Tracer, apiKey string) *FinnhubProvider {
	client := resty.New()
	client.SetBaseURL(finnhubBaseURL)
	client.SetTimeout(30 * time.Second)

	return &FinnhubProvider{
		client: client,
		tracer: tracer,
		apiKey: apiKey,
	}
}

func (p *FinnhubProvider) Name() string { return "finnhub" }

type finnhubQuote struct {
	Current       float64 `json:"c"`
	ChangePct     float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

func (p *FinnhubProvider) FetchQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	return p.fetch(ctx, symbol, strings.ToUpper(strings.TrimSpace(symbol)))
}

// FetchCryptoQuote quotes a crypto symbol through its Binance USDT pair.
func (p *FinnhubProvider) FetchCryptoQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return p.fetch(ctx, symbol, "BINANCE:"+symbol+"USDT")
}

func (p *FinnhubProvider) fetch(ctx context.Context, symbol, querySymbol string) (*domain.PriceSnapshot, error) {
	_, span := p.tracer.Start(ctx, "finnhub.fetch-quote")
	defer span.End()

	if p.apiKey == "" {
		return nil, fmt.Errorf("finnhub API key not configured")
	}
	if querySymbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	var quote finnhubQuote
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": querySymbol,
			"token":  p.apiKey,
		}).
		SetResult(&quote).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("finnhub API error %d: %s", resp.StatusCode(), resp.String())
	}

	// Finnhub returns an all-zero quote for unknown symbols.
	if quote.Current == 0 && quote.Timestamp == 0 {
		return nil, nil
	}

	return &domain.PriceSnapshot{
		Symbol:          symbol,
		PriceUSD:        quote.Current,
		Change24hPct:    quote.ChangePct,
		Source:          p.Name(),
		LastUpdatedUnix: time.Now().Unix(),
	}, nil
}
