package engine

import "time"

// CaptionEntry is one timed caption line.
type CaptionEntry struct {
	Text     string        `json:"text"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// CaptionTrack is a single language's captions for one video, in time order.
type CaptionTrack struct {
	VideoID   string         `json:"video_id"`
	Language  string         `json:"language"`
	Generated bool           `json:"generated"` // auto-generated (ASR) track
	Entries   []CaptionEntry `json:"entries"`
}

// Passage is a contiguous slice of the normalized transcript.
// Start and End are rune offsets; Text == transcript[Start:End].
type Passage struct {
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// ScoredPassage is a retrieval result.
type ScoredPassage struct {
	Passage
	Score float32 `json:"score"`
}

// AskInput is the request accepted by the HTTP shell and the MCP tool.
type AskInput struct {
	VideoURL string `json:"videoUrl" jsonschema:"YouTube video URL"`
	Question string `json:"question" jsonschema:"question about the video content"`
}

// AskOutput carries the answer text.
type AskOutput struct {
	Response string `json:"response"`
}

// AskResult is the full outcome of one pipeline run, used for logs and history.
type AskResult struct {
	VideoID   string          `json:"video_id"`
	Language  string          `json:"language"` // caption track language before translation
	Passages  int             `json:"passages"`
	Retrieved []ScoredPassage `json:"retrieved"`
	Answer    string          `json:"answer"`
}
