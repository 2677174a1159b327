package extraction

import (
	"encoding/json"
	"strings"
	"time"

	"foresight/internal/domain"
)

// rawCandidate mirrors the JSON shape the extraction prompt asks for. Every
// field is optional; parsing fills explicit defaults instead of failing.
type rawCandidate struct {
	Asset struct {
		Symbol     string   `json:"symbol"`
		FullName   string   `json:"full_name"`
		Type       string   `json:"type"`
		Confidence *float64 `json:"confidence"`
	} `json:"asset"`
	Prediction struct {
		Text        string   `json:"text"`
		Direction   string   `json:"direction"`
		Timeframe   string   `json:"timeframe"`
		TargetDate  string   `json:"target_date"`
		TargetPrice *float64 `json:"target_price"`
		Confidence  *float64 `json:"confidence"`
	} `json:"prediction"`
	Context struct {
		Quote              string   `json:"quote"`
		Reasoning          string   `json:"reasoning"`
		MarketFactors      []string `json:"market_factors"`
		TechnicalFactors   []string `json:"technical_factors"`
		FundamentalFactors []string `json:"fundamental_factors"`
		SpanStart          int      `json:"span_start"`
		SpanEnd            int      `json:"span_end"`
	} `json:"context"`
}

const defaultConfidence = 50

// parseCandidates extracts prediction candidates from a raw model response.
// The model is asked for a JSON array but routinely wraps it in prose or
// code fences; the first bracketed array substring is what gets parsed.
// Total parse failure yields an empty slice, never an error: one bad model
// response must not abort the extraction.
func parseCandidates(raw string, chunkOffset int) []domain.PredictionCandidate {
	arr := firstArray(raw)
	if arr == "" {
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &rows); err != nil {
		return nil
	}

	out := make([]domain.PredictionCandidate, 0, len(rows))
	for _, row := range rows {
		var rc rawCandidate
		if err := json.Unmarshal(row, &rc); err != nil {
			// Element-level tolerance: skip the bad element, keep the rest.
			continue
		}
		cand := toCandidate(rc, chunkOffset)
		if cand.Asset.Symbol == "" {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func toCandidate(rc rawCandidate, chunkOffset int) domain.PredictionCandidate {
	assetConf := float64(defaultConfidence)
	if rc.Asset.Confidence != nil {
		assetConf = *rc.Asset.Confidence
	}
	predConf := float64(defaultConfidence)
	if rc.Prediction.Confidence != nil {
		predConf = *rc.Prediction.Confidence
	}

	cand := domain.PredictionCandidate{
		Asset: domain.AssetGuess{
			Symbol:     strings.ToUpper(strings.TrimSpace(rc.Asset.Symbol)),
			FullName:   rc.Asset.FullName,
			Type:       parseAssetType(rc.Asset.Type),
			Confidence: assetConf,
		},
		Text:        rc.Prediction.Text,
		Confidence:  predConf,
		Direction:   domain.NormalizeDirection(rc.Prediction.Direction),
		Timeframe:   rc.Prediction.Timeframe,
		TargetPrice: rc.Prediction.TargetPrice,
		Context: domain.CandidateContext{
			Quote:              rc.Context.Quote,
			Reasoning:          rc.Context.Reasoning,
			MarketFactors:      orEmpty(rc.Context.MarketFactors),
			TechnicalFactors:   orEmpty(rc.Context.TechnicalFactors),
			FundamentalFactors: orEmpty(rc.Context.FundamentalFactors),
			SpanStart:          chunkOffset + rc.Context.SpanStart,
			SpanEnd:            chunkOffset + rc.Context.SpanEnd,
		},
	}

	if t, err := time.Parse("2006-01-02", rc.Prediction.TargetDate); err == nil {
		cand.TargetDate = &t
	}
	return cand
}

func parseAssetType(v string) domain.AssetType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "crypto", "cryptocurrency":
		return domain.AssetTypeCrypto
	case "stock", "equity":
		return domain.AssetTypeStock
	case "etf":
		return domain.AssetTypeETF
	case "index":
		return domain.AssetTypeIndex
	case "commodity":
		return domain.AssetTypeCommodity
	case "currency", "forex", "fx":
		return domain.AssetTypeCurrency
	default:
		return domain.AssetTypeStock
	}
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// firstArray returns the first balanced bracketed array substring of raw,
// tolerating prose or code fences around the JSON.
func firstArray(raw string) string {
	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
