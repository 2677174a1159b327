package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AssetGuess is the extraction model's identification of the instrument a
// prediction is about, before resolution against the assets table.
type AssetGuess struct {
	Symbol     string    `json:"symbol"`
	FullName   string    `json:"full_name"`
	Type       AssetType `json:"type"`
	DataSource string    `json:"data_source,omitempty"`
	Confidence float64   `json:"confidence"`
}

// CandidateContext carries the supporting evidence for a candidate, including
// the character span in the source transcript the statement came from.
type CandidateContext struct {
	Quote              string   `json:"quote,omitempty"`
	Reasoning          string   `json:"reasoning,omitempty"`
	MarketFactors      []string `json:"market_factors,omitempty"`
	TechnicalFactors   []string `json:"technical_factors,omitempty"`
	FundamentalFactors []string `json:"fundamental_factors,omitempty"`
	SpanStart          int      `json:"span_start"`
	SpanEnd            int      `json:"span_end"`
}

type CandidateMeta struct {
	Model        string `json:"model"`
	QualityScore int    `json:"quality_score"`
	QualityGrade string `json:"quality_grade"`
	ProcessingMS int64  `json:"processing_ms"`
}

// PredictionCandidate is the extraction engine's intermediate unit, before a
// candidate is persisted as a Prediction.
type PredictionCandidate struct {
	Asset       AssetGuess
	Text        string
	Confidence  float64 // 0..100
	Direction   Direction
	Timeframe   string
	TargetDate  *time.Time
	TargetPrice *float64
	Context     CandidateContext
	Meta        CandidateMeta
}

// DedupKey computes the deterministic key used by exact-match deduplication:
// SHA256(symbol|direction|target-price-or-notarget|timeframe).
func (c PredictionCandidate) DedupKey() string {
	price := "notarget"
	if c.TargetPrice != nil {
		price = fmt.Sprintf("%.8f", *c.TargetPrice)
	}
	data := fmt.Sprintf("%s|%s|%s|%s", c.Asset.Symbol, c.Direction, price, c.Timeframe)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomePartial   Outcome = "partial"
)

// DirectionCorrection is the audit record of reconciling the model's asserted
// direction against the target/baseline price math.
type DirectionCorrection struct {
	OriginalDirection Direction `json:"original_direction"`
	MathDirection     Direction `json:"math_direction"`
	PriceChangePct    float64   `json:"price_change_pct"`
	CorrectionMade    bool      `json:"correction_made"`
	Reason            string    `json:"reason,omitempty"`
	Skipped           bool      `json:"skipped,omitempty"`
}

type Prediction struct {
	ID            int64
	ForecasterID  int64
	ContentItemID int64
	AssetID       *int64
	Text          string
	Confidence    float64 // 0..1
	Direction     Direction
	Timeframe     string
	TargetDate    *time.Time
	TargetPrice   *float64
	BaselinePrice *float64
	Outcome       Outcome
	ValidatedAt   *time.Time
	Correction    *DirectionCorrection
	Model         string
	QualityScore  int
	QualityGrade  string
	CreatedAt     time.Time
}
