package models

import "time"

// Article is one feed entry as discovered during a run. Articles are created
// by the feed reader and never mutated afterwards.
type Article struct {
	Identity    string     `json:"identity"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	SourceFeed  string     `json:"source_feed"`
	SourceName  string     `json:"source_name,omitempty"`
}

// Status is the outcome recorded for a processed article.
type Status string

const (
	StatusSummarized          Status = "summarized"
	StatusExtractionFailed    Status = "extraction_failed"
	StatusSummarizationFailed Status = "summarization_failed"
	StatusSkippedDuplicate    Status = "skipped_duplicate"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSummarized, StatusExtractionFailed, StatusSummarizationFailed, StatusSkippedDuplicate:
		return true
	}
	return false
}

// ProcessedRecord is the persisted outcome of handling one Article.
// Identity is unique across the store.
type ProcessedRecord struct {
	Identity      string     `json:"identity"`
	Status        Status     `json:"status"`
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	SummaryText   *string    `json:"summary_text,omitempty"`
	SourceFeed    string     `json:"source_feed"`
	SourceName    string     `json:"source_name,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	Language      string     `json:"language,omitempty"`
	Model         string     `json:"model,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	RunID         string     `json:"run_id,omitempty"`
	ProcessedAt   time.Time  `json:"processed_at"`
}

// Summary returns the summary text or an empty string.
func (r *ProcessedRecord) Summary() string {
	if r.SummaryText == nil {
		return ""
	}
	return *r.SummaryText
}

// Stats is a read-only snapshot of the processed record table.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	BySource []SourceCount  `json:"by_source"`
	Oldest   *time.Time     `json:"oldest,omitempty"`
	Newest   *time.Time     `json:"newest,omitempty"`
}

// SourceCount is the number of records seen from one feed.
type SourceCount struct {
	SourceFeed string `json:"source_feed"`
	SourceName string `json:"source_name,omitempty"`
	Count      int    `json:"count"`
}
