// Package ingestion defines the document schema shared by the corpus loader,
// the Kafka ingest pipeline and the index consumer.
package ingestion

import "time"

// Document is one corpus record. ID is the caller-visible display id.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// IngestEvent is the Kafka payload on the document-ingest topic.
type IngestEvent struct {
	Document
	IngestedAt time.Time `json:"ingested_at"`
}

// EventType tags ingest events on the wire.
const EventType = "document_ingest"
