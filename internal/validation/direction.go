package validation

import (
	"fmt"
	"math"

	"foresight/internal/domain"
)

// NeutralBandPct is the price-change band inside which a target is treated
// as a neutral call rather than a directional one.
const NeutralBandPct = 2.0

// CorrectDirection reconciles the model's asserted direction against the
// target/baseline price math. Free-text sentiment is unreliable next to a
// stated numeric target, so the math wins on disagreement. With either price
// missing the asserted direction stands and the skip is recorded.
func CorrectDirection(asserted domain.Direction, targetPrice, baselinePrice *float64) domain.DirectionCorrection {
	if targetPrice == nil || baselinePrice == nil || *baselinePrice == 0 {
		return domain.DirectionCorrection{
			OriginalDirection: asserted,
			MathDirection:     asserted,
			Skipped:           true,
			Reason:            "insufficient price data",
		}
	}

	changePct := (*targetPrice - *baselinePrice) / *baselinePrice * 100

	computed := domain.DirectionNeutral
	switch {
	case changePct > NeutralBandPct:
		computed = domain.DirectionBullish
	case changePct < -NeutralBandPct:
		computed = domain.DirectionBearish
	}

	corr := domain.DirectionCorrection{
		OriginalDirection: asserted,
		MathDirection:     computed,
		PriceChangePct:    changePct,
	}
	if computed != asserted {
		corr.CorrectionMade = true
		corr.Reason = fmt.Sprintf(
			"target implies %.2f%% move from baseline, %s not %s",
			changePct, computed, asserted,
		)
	}
	return corr
}

// directionConsistent reports whether a realized price change agrees with
// the predicted direction's sign.
func directionConsistent(dir domain.Direction, changePct float64) bool {
	switch dir {
	case domain.DirectionBullish:
		return changePct > 0
	case domain.DirectionBearish:
		return changePct < 0
	}
	return math.Abs(changePct) <= NeutralBandPct
}
