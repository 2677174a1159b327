package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"foresight/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const quoteCacheTTL = 90 * time.Second

// QuoteSource is one external price API.
type QuoteSource interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
}

type AssetStore interface {
	UpsertAsset(ctx context.Context, symbol string, assetType domain.AssetType, name string) (*domain.Asset, error)
	UpdateSnapshot(ctx context.Context, assetID int64, snap domain.PriceSnapshot) error
	TrackedSymbols(ctx context.Context) ([]domain.Asset, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Service is the market data adapter: it classifies a symbol, routes it to a
// primary then a secondary source for its asset type, caches quotes in Redis
// and keeps the assets table and price history current.
type Service struct {
	tracer  trace.Tracer
	sources map[domain.AssetType][]QuoteSource
	assets  AssetStore
	redis   RedisClient
}

func NewService(tracer trace.Tracer, assets AssetStore, redisClient RedisClient) *Service {
	return &Service{
		tracer:  tracer,
		sources: make(map[domain.AssetType][]QuoteSource),
		assets:  assets,
		redis:   redisClient,
	}
}

// Register appends a source to the fallback order for the given asset types.
func (s *Service) Register(source QuoteSource, types ...domain.AssetType) {
	for _, t := range types {
		s.sources[t] = append(s.sources[t], source)
	}
}

// GetQuote returns the current quote for a symbol, or nil when no source can
// resolve it. Missing prices are not errors: validation skips rather than
// guesses.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.get-quote")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	if s.redis != nil {
		if cached := s.readCache(ctx, symbol); cached != nil {
			return cached, nil
		}
	}

	assetType := ClassifyAssetType(symbol)
	snap := s.fetchFromSources(ctx, symbol, assetType)
	if snap == nil {
		return nil, nil
	}

	if s.redis != nil {
		s.writeCache(ctx, snap)
	}
	if s.assets != nil {
		if err := s.persistSnapshot(ctx, symbol, assetType, *snap); err != nil {
			log.Printf("persist snapshot for %s: %v", symbol, err)
		}
	}
	return snap, nil
}

// ResolveAsset upserts the asset row for a symbol and returns it, fetching an
// initial quote when one is available.
func (s *Service) ResolveAsset(ctx context.Context, symbol, name string) (*domain.Asset, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.resolve-asset")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || s.assets == nil {
		return nil, nil
	}
	assetType := ClassifyAssetType(symbol)
	asset, err := s.assets.UpsertAsset(ctx, symbol, assetType, name)
	if err != nil {
		return nil, err
	}

	snap, err := s.GetQuote(ctx, symbol)
	if err != nil {
		log.Printf("initial quote for %s: %v", symbol, err)
	}
	if snap != nil {
		asset.Price = snap
	}
	return asset, nil
}

// RefreshTracked refreshes quotes for every asset referenced by a pending
// prediction. Returns the number of assets refreshed.
func (s *Service) RefreshTracked(ctx context.Context) (int, []string, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.refresh-tracked")
	defer span.End()

	if s.assets == nil {
		return 0, nil, fmt.Errorf("asset store not configured")
	}
	assets, err := s.assets.TrackedSymbols(ctx)
	if err != nil {
		return 0, nil, err
	}

	refreshed := 0
	var errs []string
	for _, asset := range assets {
		snap := s.fetchFromSources(ctx, asset.Symbol, asset.Type)
		if snap == nil {
			errs = append(errs, fmt.Sprintf("%s: no source resolved a quote", asset.Symbol))
			continue
		}
		if s.redis != nil {
			s.writeCache(ctx, snap)
		}
		if err := s.assets.UpdateSnapshot(ctx, asset.ID, *snap); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", asset.Symbol, err))
			continue
		}
		refreshed++
	}
	return refreshed, errs, nil
}

func (s *Service) fetchFromSources(ctx context.Context, symbol string, assetType domain.AssetType) *domain.PriceSnapshot {
	for _, source := range s.sources[assetType] {
		snap, err := source.FetchQuote(ctx, symbol)
		if err != nil {
			log.Printf("price source %s for %s: %v", source.Name(), symbol, err)
			continue
		}
		if snap != nil {
			return snap
		}
	}
	return nil
}

func (s *Service) persistSnapshot(ctx context.Context, symbol string, assetType domain.AssetType, snap domain.PriceSnapshot) error {
	asset, err := s.assets.UpsertAsset(ctx, symbol, assetType, "")
	if err != nil {
		return err
	}
	return s.assets.UpdateSnapshot(ctx, asset.ID, snap)
}

func (s *Service) readCache(ctx context.Context, symbol string) *domain.PriceSnapshot {
	raw, err := s.redis.Get(ctx, "quote:"+symbol).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("redis quote read: %v", err)
		}
		return nil
	}
	var snap domain.PriceSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil
	}
	return &snap
}

func (s *Service) writeCache(ctx context.Context, snap *domain.PriceSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, "quote:"+snap.Symbol, raw, quoteCacheTTL).Err(); err != nil {
		log.Printf("redis quote write: %v", err)
	}
}
