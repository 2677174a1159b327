package repository

import (
	"context"
	"encoding/json"
	"time"

	"foresight/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type ChannelRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewChannelRepository(pool pool, tracer trace.Tracer) *ChannelRepository {
	return &ChannelRepository{pool: pool, tracer: tracer}
}

const channelSelect = `
SELECT c.id, c.forecaster_id, c.channel_type, c.external_id,
       c.is_primary, c.is_active, c.collection_enabled,
       c.check_interval_secs, c.last_checked_at,
       COALESCE(
           (SELECT json_agg(json_build_object('term', k.term, 'is_default', k.is_default))
            FROM channel_keywords k WHERE k.channel_id = c.id AND k.is_active),
           '[]'
       ) AS keywords
FROM channels c
JOIN forecasters f ON f.id = c.forecaster_id`

// ListCollectable returns active channels belonging to verified, active
// forecasters. Unverified forecasters are excluded entirely (fail-closed).
func (r *ChannelRepository) ListCollectable(ctx context.Context) ([]domain.Channel, error) {
	_, span := r.tracer.Start(ctx, "channel-repo.list-collectable")
	defer span.End()

	rows, err := r.pool.Query(ctx, channelSelect+`
WHERE c.is_active AND c.collection_enabled AND f.is_verified AND f.is_active
ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

func (r *ChannelRepository) GetChannel(ctx context.Context, id int64) (*domain.Channel, error) {
	_, span := r.tracer.Start(ctx, "channel-repo.get-channel")
	defer span.End()

	row := r.pool.QueryRow(ctx, channelSelect+` WHERE c.id = $1`, id)
	return scanChannel(row)
}

func (r *ChannelRepository) UpdateLastChecked(ctx context.Context, id int64, checkedAt time.Time) error {
	_, span := r.tracer.Start(ctx, "channel-repo.update-last-checked")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE channels SET last_checked_at = $2 WHERE id = $1`, id, checkedAt.UTC())
	return err
}

func scanChannel(row rowScanner) (*domain.Channel, error) {
	var (
		ch          domain.Channel
		lastChecked pgtype.Timestamptz
		keywordsRaw []byte
	)
	err := row.Scan(
		&ch.ID,
		&ch.ForecasterID,
		&ch.ChannelType,
		&ch.ExternalID,
		&ch.IsPrimary,
		&ch.IsActive,
		&ch.CollectionEnabled,
		&ch.CheckIntervalSecs,
		&lastChecked,
		&keywordsRaw,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		ch.LastCheckedAt = &t
	}
	if len(keywordsRaw) > 0 {
		if err := json.Unmarshal(keywordsRaw, &ch.Keywords); err != nil {
			return nil, err
		}
	}
	return &ch, nil
}
