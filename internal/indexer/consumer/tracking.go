package consumer

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
)

// Tracker receives one analytics event per indexed document.
type Tracker interface {
	Track(event analytics.Event)
}

type trackingIndexer struct {
	next    Indexer
	tracker Tracker
}

// WithTracking reports every successful IndexDocument call on next to
// tracker as an IndexEvent.
func WithTracking(next Indexer, tracker Tracker) Indexer {
	return &trackingIndexer{next: next, tracker: tracker}
}

func (t *trackingIndexer) IndexDocument(displayID, title, body string) (index.Document, error) {
	start := time.Now()
	doc, err := t.next.IndexDocument(displayID, title, body)
	if err != nil {
		return doc, err
	}
	t.tracker.Track(analytics.IndexEvent{
		DocumentID: doc.DisplayID,
		InternalID: doc.ID,
		Length:     doc.Length,
		LatencyMs:  time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
	return doc, nil
}
