package domain

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// NormalizeDirection maps free-text model output onto one of the three
// canonical directions. Anything unrecognized is neutral.
func NormalizeDirection(v string) Direction {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bull", "bullish", "long", "positive", "up":
		return DirectionBullish
	case "bear", "bearish", "short", "negative", "down":
		return DirectionBearish
	default:
		return DirectionNeutral
	}
}

type AssetType string

const (
	AssetTypeCrypto    AssetType = "crypto"
	AssetTypeStock     AssetType = "stock"
	AssetTypeETF       AssetType = "etf"
	AssetTypeIndex     AssetType = "index"
	AssetTypeCommodity AssetType = "commodity"
	AssetTypeCurrency  AssetType = "currency"
)

type PriceSnapshot struct {
	Symbol          string  `json:"symbol"`
	PriceUSD        float64 `json:"price_usd"`
	Change24hPct    float64 `json:"change_24h_pct"`
	Volume24h       float64 `json:"volume_24h"`
	Source          string  `json:"source"`
	LastUpdatedUnix int64   `json:"last_updated_unix"`
}

type Asset struct {
	ID     int64
	Symbol string
	Type   AssetType
	Name   string
	Price  *PriceSnapshot
}

// PricePoint is one row of an asset's append-only price history.
type PricePoint struct {
	AssetID    int64
	PriceUSD   float64
	Volume24h  float64
	Source     string
	RecordedAt time.Time
}

type ForecasterMetrics struct {
	TotalPredictions   int     `json:"total_predictions"`
	CorrectPredictions int     `json:"correct_predictions"`
	PartialPredictions int     `json:"partial_predictions"`
	Accuracy           float64 `json:"accuracy"`
}

type Forecaster struct {
	ID          int64
	DisplayName string
	IsVerified  bool
	IsActive    bool
	Rank        int
	Metrics     ForecasterMetrics
}

type ChannelType string

const (
	ChannelTypeVideo  ChannelType = "video"
	ChannelTypeSocial ChannelType = "social"
)

type Keyword struct {
	Term      string `json:"term"`
	IsDefault bool   `json:"is_default"`
}

type Channel struct {
	ID                int64
	ForecasterID      int64
	ChannelType       ChannelType
	ExternalID        string
	IsPrimary         bool
	IsActive          bool
	CollectionEnabled bool
	CheckIntervalSecs int
	LastCheckedAt     *time.Time
	Keywords          []Keyword
}

// Due reports whether the channel's check interval has elapsed. A channel
// that has never been checked is always due.
func (c Channel) Due(now time.Time) bool {
	if !c.IsActive || !c.CollectionEnabled {
		return false
	}
	if c.LastCheckedAt == nil {
		return true
	}
	interval := time.Duration(c.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	return now.Sub(*c.LastCheckedAt) >= interval
}

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

const (
	JobTypeCollectionSweep = "collection_sweep"
	JobTypeManualTrigger   = "manual_trigger"
	JobTypeValidation      = "validation"
	JobTypePriceRefresh    = "price_refresh"
	JobTypeRanking         = "ranking"
	JobTypeCleanup         = "cleanup"
)

// JobCounts is the payload persisted with every job record; admin dashboards
// read these rows, the pipeline only writes them.
type JobCounts struct {
	ChannelsChecked      int      `json:"channels_checked,omitempty"`
	ItemsCollected       int      `json:"items_collected,omitempty"`
	ItemsFiltered        int      `json:"items_filtered,omitempty"`
	ItemsProcessed       int      `json:"items_processed,omitempty"`
	ItemsDeleted         int64    `json:"items_deleted,omitempty"`
	PredictionsStored    int      `json:"predictions_stored,omitempty"`
	PredictionsValidated int      `json:"predictions_validated,omitempty"`
	Errors               []string `json:"errors,omitempty"`
}

type Job struct {
	ID         string
	Type       string
	Status     JobStatus
	Counts     JobCounts
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}
