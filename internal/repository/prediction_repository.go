package repository

import (
	"context"
	"encoding/json"
	"time"

	"foresight/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type PredictionRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewPredictionRepository(pool pool, tracer trace.Tracer) *PredictionRepository {
	return &PredictionRepository{pool: pool, tracer: tracer}
}

func (r *PredictionRepository) InsertPrediction(ctx context.Context, p domain.Prediction) (*domain.Prediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.insert")
	defer span.End()

	var correction []byte
	if p.Correction != nil {
		raw, err := json.Marshal(p.Correction)
		if err != nil {
			return nil, err
		}
		correction = raw
	}
	if p.Outcome == "" {
		p.Outcome = domain.OutcomePending
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO predictions (
    forecaster_id, content_item_id, asset_id, text, confidence,
    direction, timeframe, target_date, target_price, baseline_price,
    outcome, correction, model, quality_score, quality_grade
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING id, created_at`,
		p.ForecasterID,
		p.ContentItemID,
		p.AssetID,
		p.Text,
		p.Confidence,
		p.Direction,
		p.Timeframe,
		targetDateValue(p.TargetDate),
		p.TargetPrice,
		p.BaselinePrice,
		p.Outcome,
		correction,
		p.Model,
		p.QualityScore,
		p.QualityGrade,
	)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// PendingPrediction joins a pending prediction with its resolved asset so the
// validator can fetch a quote without a second lookup.
type PendingPrediction struct {
	domain.Prediction
	Symbol    string
	AssetType domain.AssetType
}

// ListPendingDue returns pending predictions whose target date has passed (or
// was never set), restricted to predictions with a resolvable asset.
func (r *PredictionRepository) ListPendingDue(ctx context.Context, now time.Time, limit int) ([]PendingPrediction, error) {
	_, span := r.tracer.Start(ctx, "prediction-repo.list-pending-due")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.forecaster_id, p.content_item_id, p.asset_id, p.text, p.confidence,
       p.direction, p.timeframe, p.target_date, p.target_price, p.baseline_price,
       p.outcome, p.created_at, a.symbol, a.asset_type
FROM predictions p
JOIN assets a ON a.id = p.asset_id
WHERE p.outcome = 'pending'
  AND (p.target_date IS NULL OR p.target_date <= $1)
ORDER BY p.created_at ASC
LIMIT $2`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingPrediction
	for rows.Next() {
		var (
			p          PendingPrediction
			targetDate pgtype.Date
		)
		err := rows.Scan(
			&p.ID, &p.ForecasterID, &p.ContentItemID, &p.AssetID, &p.Text, &p.Confidence,
			&p.Direction, &p.Timeframe, &targetDate, &p.TargetPrice, &p.BaselinePrice,
			&p.Outcome, &p.CreatedAt, &p.Symbol, &p.AssetType,
		)
		if err != nil {
			return nil, err
		}
		if targetDate.Valid {
			t := targetDate.Time
			p.TargetDate = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetOutcome records a validation result. Predictions are validated at most
// once: rows that already carry a validated_at are left untouched.
func (r *PredictionRepository) SetOutcome(ctx context.Context, id int64, outcome domain.Outcome, validatedAt time.Time) error {
	_, span := r.tracer.Start(ctx, "prediction-repo.set-outcome")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
UPDATE predictions
SET outcome = $2, validated_at = $3
WHERE id = $1 AND validated_at IS NULL`, id, outcome, validatedAt.UTC())
	return err
}

func targetDateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	// target dates are calendar dates, not instants
	return t.UTC().Truncate(24 * time.Hour)
}
