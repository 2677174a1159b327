package repository

import (
	"context"
	"encoding/json"
	"errors"

	"foresight/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type AssetRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewAssetRepository(pool pool, tracer trace.Tracer) *AssetRepository {
	return &AssetRepository{pool: pool, tracer: tracer}
}

func (r *AssetRepository) UpsertAsset(ctx context.Context, symbol string, assetType domain.AssetType, name string) (*domain.Asset, error) {
	_, span := r.tracer.Start(ctx, "asset-repo.upsert")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
INSERT INTO assets (symbol, asset_type, name)
VALUES ($1, $2, $3)
ON CONFLICT (symbol, asset_type) DO UPDATE SET
    name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE assets.name END
RETURNING id, symbol, asset_type, name, price_data`,
		symbol, assetType, name)
	return scanAsset(row)
}

func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol string, assetType domain.AssetType) (*domain.Asset, error) {
	_, span := r.tracer.Start(ctx, "asset-repo.get-by-symbol")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
SELECT id, symbol, asset_type, name, price_data
FROM assets WHERE symbol = $1 AND asset_type = $2`, symbol, assetType)
	asset, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return asset, err
}

// UpdateSnapshot refreshes the asset's price_data blob and appends the quote
// to the append-only price_history series.
func (r *AssetRepository) UpdateSnapshot(ctx context.Context, assetID int64, snap domain.PriceSnapshot) error {
	_, span := r.tracer.Start(ctx, "asset-repo.update-snapshot")
	defer span.End()

	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx,
		`UPDATE assets SET price_data = $2 WHERE id = $1`, assetID, raw); err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO price_history (asset_id, price_usd, volume_24h, source, recorded_at)
VALUES ($1, $2, $3, $4, NOW())`,
		assetID, snap.PriceUSD, snap.Volume24h, snap.Source)
	return err
}

// TrackedSymbols lists assets referenced by at least one pending prediction,
// the working set of the price refresh job.
func (r *AssetRepository) TrackedSymbols(ctx context.Context) ([]domain.Asset, error) {
	_, span := r.tracer.Start(ctx, "asset-repo.tracked-symbols")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT a.id, a.symbol, a.asset_type, a.name, a.price_data
FROM assets a
JOIN predictions p ON p.asset_id = a.id
WHERE p.outcome = 'pending'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		asset    domain.Asset
		priceRaw []byte
	)
	if err := row.Scan(&asset.ID, &asset.Symbol, &asset.Type, &asset.Name, &priceRaw); err != nil {
		return nil, err
	}
	if len(priceRaw) > 0 {
		var snap domain.PriceSnapshot
		if err := json.Unmarshal(priceRaw, &snap); err != nil {
			return nil, err
		}
		if snap.LastUpdatedUnix != 0 {
			asset.Price = &snap
		}
	}
	return &asset, nil
}
