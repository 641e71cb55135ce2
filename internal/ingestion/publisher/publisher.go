// Package publisher validates documents and publishes them as ingest events
// to Kafka for the indexer service.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
)

// EventSink is the subset of kafka.Producer used by the publisher.
type EventSink interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher batches documents into ingest events.
type Publisher struct {
	sink      EventSink
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Publisher writing batches of up to batchSize events.
func New(sink EventSink, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Publisher{
		sink:      sink,
		batchSize: batchSize,
		now:       time.Now,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Publish validates every document and publishes the valid ones. Invalid
// documents are logged and counted in the returned rejected total.
func (p *Publisher) Publish(ctx context.Context, docs []ingestion.Document) (published, rejected int, err error) {
	batch := make([]kafka.Event, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.sink.PublishBatch(ctx, batch); err != nil {
			return fmt.Errorf("publishing %d ingest events: %w", len(batch), err)
		}
		published += len(batch)
		batch = batch[:0]
		return nil
	}
	for i := range docs {
		doc := docs[i]
		if verr := validator.ValidateDocument(&doc); verr != nil {
			rejected++
			p.logger.Warn("document rejected", "id", doc.ID, "error", verr)
			continue
		}
		batch = append(batch, kafka.Event{
			Key:  doc.ID,
			Type: ingestion.EventType,
			Value: ingestion.IngestEvent{
				Document:   doc,
				IngestedAt: p.now().UTC(),
			},
		})
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return published, rejected, err
			}
		}
	}
	if err := flush(); err != nil {
		return published, rejected, err
	}
	p.logger.Info("documents published", "published", published, "rejected", rejected)
	return published, rejected, nil
}
