package validation

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"foresight/internal/domain"
	"foresight/internal/repository"

	"go.opentelemetry.io/otel/trace"
)

// OutcomeTolerancePct is the band around the target price that counts as a
// correct call. Within twice the band and direction-consistent is partial
// credit.
const OutcomeTolerancePct = 5.0

// FlatMovePct bounds the no-target fallback: a 24h change under this is
// treated as flat.
const FlatMovePct = 1.0

type PredictionStore interface {
	ListPendingDue(ctx context.Context, now time.Time, limit int) ([]repository.PendingPrediction, error)
	SetOutcome(ctx context.Context, id int64, outcome domain.Outcome, validatedAt time.Time) error
}

type ForecasterStore interface {
	ApplyValidationResult(ctx context.Context, forecasterID int64, outcome domain.Outcome) error
}

type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
}

// Service resolves pending predictions against market prices once their
// target dates have passed.
type Service struct {
	tracer      trace.Tracer
	predictions PredictionStore
	forecasters ForecasterStore
	quotes      QuoteFetcher
}

func NewService(tracer trace.Tracer, predictions PredictionStore, forecasters ForecasterStore, quotes QuoteFetcher) *Service {
	return &Service{
		tracer:      tracer,
		predictions: predictions,
		forecasters: forecasters,
		quotes:      quotes,
	}
}

// ValidatePending resolves up to limit due predictions. Predictions whose
// asset has no current quote are skipped and stay pending. Returns the
// number resolved.
func (s *Service) ValidatePending(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "validation.validate-pending")
	defer span.End()

	now := time.Now()
	pending, err := s.predictions.ListPendingDue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list due predictions: %w", err)
	}

	resolved := 0
	for _, p := range pending {
		quote, err := s.quotes.GetQuote(ctx, p.Symbol)
		if err != nil {
			log.Printf("quote for %s (prediction %d): %v", p.Symbol, p.ID, err)
			continue
		}
		if quote == nil {
			// No price available; the prediction stays pending rather than
			// being guessed at.
			continue
		}

		outcome := Resolve(p.Prediction, quote)
		if err := s.predictions.SetOutcome(ctx, p.ID, outcome, now); err != nil {
			log.Printf("set outcome for prediction %d: %v", p.ID, err)
			continue
		}
		if err := s.forecasters.ApplyValidationResult(ctx, p.ForecasterID, outcome); err != nil {
			log.Printf("update forecaster %d metrics: %v", p.ForecasterID, err)
		}
		resolved++
	}
	return resolved, nil
}

// Resolve scores one prediction against the current quote. With a target
// price: within the tolerance band is correct, within twice the band and
// direction-consistent is partial, else incorrect. Without one, the 24h
// change decides: a move over the flat threshold in the predicted sign is
// correct, a flat market is partial, a move against the call is incorrect.
func Resolve(p domain.Prediction, quote *domain.PriceSnapshot) domain.Outcome {
	if p.TargetPrice != nil && *p.TargetPrice != 0 {
		offPct := math.Abs(quote.PriceUSD-*p.TargetPrice) / *p.TargetPrice * 100
		switch {
		case offPct <= OutcomeTolerancePct:
			return domain.OutcomeCorrect
		case offPct <= 2*OutcomeTolerancePct && targetDirectionConsistent(p, quote.PriceUSD):
			return domain.OutcomePartial
		default:
			return domain.OutcomeIncorrect
		}
	}

	change := quote.Change24hPct
	switch {
	case math.Abs(change) <= FlatMovePct:
		return domain.OutcomePartial
	case directionConsistent(p.Direction, change):
		return domain.OutcomeCorrect
	default:
		return domain.OutcomeIncorrect
	}
}

// targetDirectionConsistent checks the partial-credit condition: the market
// moved from baseline toward the target's side. Without a baseline the
// direction call itself is used against the 24h change sign.
func targetDirectionConsistent(p domain.Prediction, current float64) bool {
	if p.BaselinePrice != nil && *p.BaselinePrice != 0 {
		realized := (current - *p.BaselinePrice) / *p.BaselinePrice * 100
		return directionConsistent(p.Direction, realized)
	}
	return p.Direction != domain.DirectionNeutral
}
