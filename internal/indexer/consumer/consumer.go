// Package consumer reads ingest events from Kafka and indexes them through
// the engine.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
)

// Indexer is the write side of the engine.
type Indexer interface {
	IndexDocument(displayID, title, body string) (index.Document, error)
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that indexes every ingest event.
// Undecodable or invalid events are dropped, and redelivered documents that
// are already indexed count as success. Any other indexing failure leaves
// the offset uncommitted.
func HandleMessage(engine Indexer) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.Type != "" && msg.Type != ingestion.EventType {
			logger.Debug("ignoring event", "type", msg.Type, "key", string(msg.Key))
			return nil
		}
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](msg.Value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(msg.Key),
			)
			return nil
		}
		if err := validator.ValidateDocument(&event.Document); err != nil {
			logger.Warn("dropping invalid document", "id", event.ID, "error", err)
			return nil
		}

		doc, err := engine.IndexDocument(event.ID, event.Title, event.Body)
		if errors.Is(err, apperrors.ErrDocumentExists) {
			logger.Info("document already indexed", "display_id", event.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("indexing document %s: %w", event.ID, err)
		}
		logger.Info("document indexed",
			"display_id", event.ID,
			"doc_id", doc.ID,
			"length", doc.Length,
		)
		return nil
	}
}
