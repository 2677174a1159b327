package extraction

import (
	"sort"

	"foresight/internal/domain"
)

const summaryTopN = 5

// Summary is the whole-video rollup computed after deduplication.
type Summary struct {
	UniqueAssets    []string                     `json:"unique_assets"`
	AssetTypes      []domain.AssetType           `json:"asset_types"`
	SentimentCounts map[domain.Direction]int     `json:"sentiment_counts"`
	MeanConfidence  float64                      `json:"mean_confidence"`
	TopByConfidence []domain.PredictionCandidate `json:"-"`
	TotalCandidates int                          `json:"total_candidates"`
}

func buildSummary(candidates []domain.PredictionCandidate) Summary {
	s := Summary{
		SentimentCounts: map[domain.Direction]int{},
		TotalCandidates: len(candidates),
	}

	assets := map[string]bool{}
	types := map[domain.AssetType]bool{}
	total := 0.0
	for _, c := range candidates {
		if !assets[c.Asset.Symbol] {
			assets[c.Asset.Symbol] = true
			s.UniqueAssets = append(s.UniqueAssets, c.Asset.Symbol)
		}
		types[c.Asset.Type] = true
		s.SentimentCounts[c.Direction]++
		total += c.Confidence
	}
	for at := range types {
		s.AssetTypes = append(s.AssetTypes, at)
	}
	sort.Slice(s.AssetTypes, func(i, j int) bool { return s.AssetTypes[i] < s.AssetTypes[j] })
	if len(candidates) > 0 {
		s.MeanConfidence = total / float64(len(candidates))
	}

	top := make([]domain.PredictionCandidate, len(candidates))
	copy(top, candidates)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Confidence > top[j].Confidence })
	if len(top) > summaryTopN {
		top = top[:summaryTopN]
	}
	s.TopByConfidence = top

	return s
}
