package extraction

import (
	"math"

	"foresight/internal/domain"
)

// semanticPriceEpsilon is the absolute target-price difference under which
// two same-symbol, same-direction candidates are the same call.
const semanticPriceEpsilon = 0.01

// dedupe collapses the candidate list with three independent layers: exact
// dedup-key match, source-span overlap, and semantic similarity. On a
// similar pair the higher-confidence candidate survives. Input order is
// preserved for survivors.
func dedupe(candidates []domain.PredictionCandidate) []domain.PredictionCandidate {
	kept := make([]domain.PredictionCandidate, 0, len(candidates))
	seen := make(map[string]int, len(candidates)) // dedup key -> index in kept

	for _, cand := range candidates {
		key := cand.DedupKey()
		if idx, ok := seen[key]; ok {
			if cand.Confidence > kept[idx].Confidence {
				kept[idx] = cand
			}
			continue
		}

		if idx := findSimilar(kept, cand); idx >= 0 {
			if cand.Confidence > kept[idx].Confidence {
				delete(seen, kept[idx].DedupKey())
				kept[idx] = cand
				seen[key] = idx
			}
			continue
		}

		seen[key] = len(kept)
		kept = append(kept, cand)
	}
	return kept
}

func findSimilar(kept []domain.PredictionCandidate, cand domain.PredictionCandidate) int {
	for i, prev := range kept {
		if spansOverlap(prev.Context, cand.Context) {
			return i
		}
		if semanticallySame(prev, cand) {
			return i
		}
	}
	return -1
}

// spansOverlap treats two candidates drawn from overlapping transcript spans
// as the same underlying statement. Zero-width spans never overlap; chunked
// extraction frequently leaves them unset.
func spansOverlap(a, b domain.CandidateContext) bool {
	if a.SpanEnd <= a.SpanStart || b.SpanEnd <= b.SpanStart {
		return false
	}
	return a.SpanStart < b.SpanEnd && b.SpanStart < a.SpanEnd
}

func semanticallySame(a, b domain.PredictionCandidate) bool {
	if a.Asset.Symbol != b.Asset.Symbol || a.Direction != b.Direction {
		return false
	}
	if a.TargetPrice == nil || b.TargetPrice == nil {
		return false
	}
	return math.Abs(*a.TargetPrice-*b.TargetPrice) <= semanticPriceEpsilon
}
