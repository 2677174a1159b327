package extraction

import "foresight/internal/domain"

// scoreQuality rates how well-supported a candidate is. The score is stored
// for downstream ranking and never gates persistence.
func scoreQuality(c domain.PredictionCandidate) (int, string) {
	score := 50.0
	score += c.Asset.Confidence * 0.2
	score += c.Confidence * 0.2
	if c.TargetPrice != nil {
		score += 10
	}
	if c.TargetDate != nil {
		score += 10
	}
	if c.Context.Quote != "" {
		score += 10
	}
	if c.Context.Reasoning != "" {
		score += 5
	}
	if len(c.Context.MarketFactors) > 0 {
		score += 5
	}

	n := int(score)
	if n > 100 {
		n = 100
	}
	return n, gradeFor(n)
}

func gradeFor(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
