// Package analytics collects feedback-search and indexing events, ships
// them over Kafka and aggregates them into service-level statistics.
package analytics

import "time"

type EventType string

const (
	EventFeedbackSearch EventType = "feedback_search"
	EventIndexDoc       EventType = "index_document"
)

// Outcome values of a feedback search.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeIOError = "io_error"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Event is anything the collectors can publish. Kind travels in the Kafka
// event-type header; Key picks the partition.
type Event interface {
	Kind() EventType
	Key() string
}

// FeedbackSearchEvent describes one served feedback search.
type FeedbackSearchEvent struct {
	Query               string    `json:"query"`
	Tokens              []string  `json:"tokens"`
	TopN                int       `json:"top_n"`
	TopK                int       `json:"top_k"`
	Alpha               float64   `json:"alpha"`
	TotalHits           int       `json:"total_hits"`
	Returned            int       `json:"returned"`
	FeedbackTerms       int       `json:"feedback_terms"`
	MissingFeedbackDocs int       `json:"missing_feedback_docs"`
	LatencyMs           int64     `json:"latency_ms"`
	CacheHit            bool      `json:"cache_hit"`
	Outcome             string    `json:"outcome"`
	Timestamp           time.Time `json:"timestamp"`
	RequestID           string    `json:"request_id"`
}

func (FeedbackSearchEvent) Kind() EventType { return EventFeedbackSearch }
func (e FeedbackSearchEvent) Key() string { return e.Query }

// IndexEvent describes one indexed document.
type IndexEvent struct {
	DocumentID string    `json:"document_id"`
	InternalID int       `json:"internal_id"`
	Length     int64     `json:"length"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

func (IndexEvent) Kind() EventType { return EventIndexDoc }
func (e IndexEvent) Key() string { return e.DocumentID }
