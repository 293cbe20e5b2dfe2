package models

import "time"

// RunMode distinguishes a full pipeline run from a notification replay.
type RunMode string

const (
	RunModeFull     RunMode = "full"
	RunModePushOnly RunMode = "push_only"
)

// RunResult aggregates per-article outcomes for one run.
type RunResult struct {
	RunID               string    `json:"run_id"`
	Mode                RunMode   `json:"mode"`
	RangeStart          time.Time `json:"range_start"`
	RangeEnd            time.Time `json:"range_end"`
	Fetched             int       `json:"fetched"`
	SkippedDuplicate    int       `json:"skipped_duplicate"`
	Summarized          int       `json:"summarized"`
	ExtractionFailed    int       `json:"extraction_failed"`
	SummarizationFailed int       `json:"summarization_failed"`
	Notified            int       `json:"notified"`
	NotifyFailed        int       `json:"notify_failed"`
	FailedFeeds         []string  `json:"failed_feeds,omitempty"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
