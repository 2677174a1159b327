package repository

import (
	"context"
	"encoding/json"
	"time"

	"foresight/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ContentRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewContentRepository(pool pool, tracer trace.Tracer) *ContentRepository {
	return &ContentRepository{pool: pool, tracer: tracer}
}

const contentColumns = `id, source_type, source_id, forecaster_id, channel_id, source_url,
          data, status, processing, processed_at, created_at, updated_at`

// UpsertItem inserts or updates by the composite identity
// (source_type, source_id, forecaster_id). A second collection of the same
// source refreshes url and payload but never resets pipeline status.
func (r *ContentRepository) UpsertItem(ctx context.Context, item domain.ContentItem) (*domain.ContentItem, error) {
	_, span := r.tracer.Start(ctx, "content-repo.upsert-item")
	defer span.End()

	data, err := json.Marshal(item.Data)
	if err != nil {
		return nil, err
	}
	processing, err := json.Marshal(item.Processing)
	if err != nil {
		return nil, err
	}
	status := item.Status
	if status == "" {
		status = domain.StatusCollected
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO content_items (
    source_type, source_id, forecaster_id, channel_id, source_url,
    data, status, processing
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (source_type, source_id, forecaster_id) DO UPDATE SET
    channel_id = EXCLUDED.channel_id,
    source_url = EXCLUDED.source_url,
    data = content_items.data || EXCLUDED.data,
    updated_at = NOW()
RETURNING `+contentColumns,
		item.SourceType,
		item.SourceID,
		item.ForecasterID,
		item.ChannelID,
		item.SourceURL,
		data,
		status,
		processing,
	)
	return scanContentItem(row)
}

func (r *ContentRepository) UpdateStatus(ctx context.Context, id int64, status domain.ContentStatus) error {
	_, span := r.tracer.Start(ctx, "content-repo.update-status")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE content_items SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *ContentRepository) UpdateProcessing(ctx context.Context, id int64, meta domain.ProcessingMetadata) error {
	_, span := r.tracer.Start(ctx, "content-repo.update-processing")
	defer span.End()

	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE content_items SET processing = $2, updated_at = NOW() WHERE id = $1`, id, raw)
	return err
}

func (r *ContentRepository) UpdateData(ctx context.Context, id int64, data domain.ContentData) error {
	_, span := r.tracer.Start(ctx, "content-repo.update-data")
	defer span.End()

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE content_items SET data = $2, updated_at = NOW() WHERE id = $1`, id, raw)
	return err
}

func (r *ContentRepository) MarkProcessed(ctx context.Context, id int64) error {
	_, span := r.tracer.Start(ctx, "content-repo.mark-processed")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
UPDATE content_items
SET status = $2, processed_at = NOW(), updated_at = NOW()
WHERE id = $1`, id, domain.StatusProcessed)
	return err
}

// ProcessingQueue returns non-terminal items for a sweep: partially-processed
// stages first (audio already downloaded, transcription already paid for),
// then freshly collected, oldest first within each group.
func (r *ContentRepository) ProcessingQueue(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	_, span := r.tracer.Start(ctx, "content-repo.processing-queue")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+contentColumns+`
FROM content_items
WHERE status NOT IN ('processed', 'failed')
ORDER BY
    CASE status
        WHEN 'audio_downloaded' THEN 0
        WHEN 'transcribing'     THEN 0
        WHEN 'transcribed'      THEN 0
        WHEN 'extracting'       THEN 0
        ELSE 1
    END,
    created_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CollectedSince reports whether the source was already collected within the
// freshness window, regardless of owner.
func (r *ContentRepository) CollectedSince(ctx context.Context, sourceType domain.SourceType, sourceID string, since time.Time) (bool, error) {
	_, span := r.tracer.Start(ctx, "content-repo.collected-since")
	defer span.End()

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM content_items
    WHERE source_type = $1 AND source_id = $2 AND created_at >= $3
)`, sourceType, sourceID, since).Scan(&exists)
	return exists, err
}

func (r *ContentRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "content-repo.delete-terminal-older-than")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
DELETE FROM content_items
WHERE status IN ('processed', 'failed') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentItem(row rowScanner) (*domain.ContentItem, error) {
	var (
		item           domain.ContentItem
		dataRaw        []byte
		processingRaw  []byte
		processedAt    pgtype.Timestamptz
		createdUpdated [2]time.Time
	)
	err := row.Scan(
		&item.ID,
		&item.SourceType,
		&item.SourceID,
		&item.ForecasterID,
		&item.ChannelID,
		&item.SourceURL,
		&dataRaw,
		&item.Status,
		&processingRaw,
		&processedAt,
		&createdUpdated[0],
		&createdUpdated[1],
	)
	if err != nil {
		return nil, err
	}
	if len(dataRaw) > 0 {
		if err := json.Unmarshal(dataRaw, &item.Data); err != nil {
			return nil, err
		}
	}
	if len(processingRaw) > 0 {
		if err := json.Unmarshal(processingRaw, &item.Processing); err != nil {
			return nil, err
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		item.ProcessedAt = &t
	}
	item.CreatedAt = createdUpdated[0]
	item.UpdatedAt = createdUpdated[1]
	return &item, nil
}
