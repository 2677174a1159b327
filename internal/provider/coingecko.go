package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"foresight/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// coinGeckoID maps the symbols the pipeline commonly sees to CoinGecko ids.
// Symbols outside this table are not resolvable through CoinGecko and fall
// through to the secondary source.
var coinGeckoID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"BNB":   "binancecoin",
}

// CoinGeckoProvider fetches crypto quotes from the CoinGecko free API.
// Rate limited to 8 requests per minute (one token every 7.5 seconds).
type CoinGeckoProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

func NewCoinGeckoProvider(tracer trace.Tracer) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: coingeckoBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(8, 7500*time.Millisecond),
	}
}

func (p *CoinGeckoProvider) Name() string { return "coingecko" }

// FetchQuote returns the current quote for one crypto symbol, or nil when the
// symbol is unknown to CoinGecko.
func (p *CoinGeckoProvider) FetchQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	_, span := p.tracer.Start(ctx, "coingecko.fetch-quote")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	cgID, ok := coinGeckoID[symbol]
	if !ok {
		return nil, nil
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true&include_24hr_change=true",
		p.baseURL, cgID)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}

	// Response shape: {"bitcoin": {"usd": 97000, "usd_24h_vol": 45000000000, "usd_24h_change": 2.34}}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse quote for %s: %w", symbol, err)
	}
	data, ok := raw[cgID]
	if !ok {
		return nil, nil
	}

	return &domain.PriceSnapshot{
		Symbol:          symbol,
		PriceUSD:        data["usd"],
		Volume24h:       data["usd_24h_vol"],
		Change24hPct:    data["usd_24h_change"],
		Source:          p.Name(),
		LastUpdatedUnix: time.Now().Unix(),
	}, nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}
