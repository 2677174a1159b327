package repository

import (
	"context"

	"foresight/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type ForecasterRepository struct {
	pool   pool
	tracer trace.Tracer
}

func NewForecasterRepository(pool pool, tracer trace.Tracer) *ForecasterRepository {
	return &ForecasterRepository{pool: pool, tracer: tracer}
}

// ApplyValidationResult folds one resolved prediction into the forecaster's
// aggregate. The update is pure column arithmetic so two concurrent validation
// passes compose instead of racing a read-modify-write. Partial credit is 0.5.
func (r *ForecasterRepository) ApplyValidationResult(ctx context.Context, forecasterID int64, outcome domain.Outcome) error {
	_, span := r.tracer.Start(ctx, "forecaster-repo.apply-validation-result")
	defer span.End()

	var correctDelta, partialDelta int
	switch outcome {
	case domain.OutcomeCorrect:
		correctDelta = 1
	case domain.OutcomePartial:
		partialDelta = 1
	case domain.OutcomeIncorrect:
	default:
		return nil
	}

	_, err := r.pool.Exec(ctx, `
UPDATE forecasters
SET total_predictions   = total_predictions + 1,
    correct_predictions = correct_predictions + $2,
    partial_predictions = partial_predictions + $3,
    accuracy = (correct_predictions + $2 + (partial_predictions + $3) * 0.5)
               / (total_predictions + 1)
WHERE id = $1`, forecasterID, correctDelta, partialDelta)
	return err
}

func (r *ForecasterRepository) GetForecaster(ctx context.Context, id int64) (*domain.Forecaster, error) {
	_, span := r.tracer.Start(ctx, "forecaster-repo.get")
	defer span.End()

	var f domain.Forecaster
	err := r.pool.QueryRow(ctx, `
SELECT id, display_name, is_verified, is_active, rank,
       total_predictions, correct_predictions, partial_predictions, accuracy
FROM forecasters WHERE id = $1`, id).Scan(
		&f.ID, &f.DisplayName, &f.IsVerified, &f.IsActive, &f.Rank,
		&f.Metrics.TotalPredictions, &f.Metrics.CorrectPredictions,
		&f.Metrics.PartialPredictions, &f.Metrics.Accuracy,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// RecomputeRanks orders verified forecasters by accuracy. Forecasters below
// the minimum sample floor rank after everyone with a track record.
func (r *ForecasterRepository) RecomputeRanks(ctx context.Context, minSamples int) (int64, error) {
	_, span := r.tracer.Start(ctx, "forecaster-repo.recompute-ranks")
	defer span.End()

	if minSamples <= 0 {
		minSamples = 5
	}
	tag, err := r.pool.Exec(ctx, `
WITH ranked AS (
    SELECT id, ROW_NUMBER() OVER (
        ORDER BY (total_predictions >= $1) DESC, accuracy DESC, total_predictions DESC
    ) AS new_rank
    FROM forecasters
    WHERE is_verified AND is_active
)
UPDATE forecasters f
SET rank = ranked.new_rank
FROM ranked
WHERE f.id = ranked.id`, minSamples)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
