package extraction

import (
	"testing"
	"time"

	"foresight/internal/domain"
)

func TestScoreQuality(t *testing.T) {
	t.Parallel()

	date := time.Now()
	full := domain.PredictionCandidate{
		Asset:       domain.AssetGuess{Symbol: "BTC", Confidence: 100},
		Confidence:  100,
		TargetPrice: f64(100000),
		TargetDate:  &date,
		Context: domain.CandidateContext{
			Quote:         "one hundred thousand",
			Reasoning:     "halving cycle",
			MarketFactors: []string{"ETF inflows"},
		},
	}
	score, grade := scoreQuality(full)
	if score != 100 || grade != "A" {
		t.Errorf("full candidate scored %d/%s, want 100/A", score, grade)
	}

	bare := domain.PredictionCandidate{
		Asset:      domain.AssetGuess{Symbol: "BTC", Confidence: 50},
		Confidence: 50,
	}
	score, grade = scoreQuality(bare)
	// 50 + 10 + 10 with nothing else present.
	if score != 70 || grade != "C" {
		t.Errorf("bare candidate scored %d/%s, want 70/C", score, grade)
	}
}

func TestGradeBoundaries(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		score int
		want  string
	}{
		{95, "A"}, {90, "A"}, {89, "B"}, {80, "B"},
		{79, "C"}, {70, "C"}, {69, "D"}, {60, "D"}, {59, "F"},
	} {
		if got := gradeFor(tt.score); got != tt.want {
			t.Errorf("gradeFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
