package domain

import "time"

type SourceType string

const (
	SourceTypeVideo SourceType = "video"
	SourceTypePost  SourceType = "post"
)

type ContentStatus string

const (
	StatusCollected        ContentStatus = "collected"
	StatusAudioDownloading ContentStatus = "audio_downloading"
	StatusAudioDownloaded  ContentStatus = "audio_downloaded"
	StatusTranscribing     ContentStatus = "transcribing"
	StatusTranscribed      ContentStatus = "transcribed"
	StatusExtracting       ContentStatus = "extracting"
	StatusProcessed        ContentStatus = "processed"
	StatusFailed           ContentStatus = "failed"
)

// MaxExtractionRetries is the number of recorded extraction failures after
// which an item is moved to failed instead of staying queue-eligible.
const MaxExtractionRetries = 3

// StageRank orders statuses for queue priority: partially-processed items
// (audio already downloaded, API spend already committed) come before fresh
// ones, terminal states are never queued.
func (s ContentStatus) StageRank() int {
	switch s {
	case StatusAudioDownloaded, StatusTranscribing, StatusTranscribed, StatusExtracting:
		return 0
	case StatusCollected, StatusAudioDownloading:
		return 1
	default:
		return 2
	}
}

func (s ContentStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

type TranscriptSegment struct {
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// ContentData is the structured payload of a collected item.
type ContentData struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Transcript       string     `json:"transcript,omitempty"`
	TranscriptSource string     `json:"transcript_source,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

// ProcessingMetadata tracks resumable pipeline state for one item. AudioPath
// survives a crash between download and transcription so the next attempt can
// skip the conversion API entirely.
type ProcessingMetadata struct {
	AudioPath  string              `json:"audio_path,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
	RetryCount int                 `json:"retry_count,omitempty"`
	LastStep   string              `json:"last_step,omitempty"`
	Segments   []TranscriptSegment `json:"segments,omitempty"`
}

// ContentItem is one collected piece of source content. Identity is the
// composite (SourceType, SourceID, ForecasterID); re-collecting the same
// source updates in place, it never duplicates.
type ContentItem struct {
	ID           int64
	SourceType   SourceType
	SourceID     string
	ForecasterID int64
	ChannelID    int64
	SourceURL    string
	Data         ContentData
	Status       ContentStatus
	Processing   ProcessingMetadata
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Text returns the extraction input for the item: title, description and
// transcript joined in source order.
func (c ContentItem) Text() string {
	out := c.Data.Title
	if c.Data.Description != "" {
		out += "\n" + c.Data.Description
	}
	if c.Data.Transcript != "" {
		out += "\n" + c.Data.Transcript
	}
	return out
}
