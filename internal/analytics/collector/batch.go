// Package collector buffers analytics events in memory and ships them to
// Kafka in batches.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
)

// BatchSink is the subset of kafka.Producer used by BatchCollector.
type BatchSink interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// BatchCollector flushes when the buffer reaches batchSize events or after
// flushInterval, whichever comes first. Failed batches are re-queued up to
// three batches' worth of events; the excess is dropped.
type BatchCollector struct {
	sink          BatchSink
	mu            sync.Mutex
	flushMu       sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

func NewBatchCollector(sink BatchSink, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		sink:          sink,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "batch-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop; it exits after a final flush once ctx is
// cancelled.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bc.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("batch collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers event and triggers an asynchronous flush when the batch is
// full.
func (bc *BatchCollector) Track(event analytics.Event) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{
		Key:   event.Key(),
		Type:  string(event.Kind()),
		Value: event,
	})
	shouldFlush := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if shouldFlush {
		go bc.Flush(context.Background())
	}
}

// Close waits for the flush loop started by Start to finish.
func (bc *BatchCollector) Close() {
	<-bc.done
}

func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Flush publishes everything currently buffered.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()

	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.sink.PublishBatch(ctx, batch); err != nil {
		bc.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if limit := bc.batchSize * 3; len(bc.buffer) > limit {
			dropped := len(bc.buffer) - limit
			bc.buffer = bc.buffer[:limit]
			bc.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
		}
		bc.mu.Unlock()
		return
	}
	bc.logger.Debug("batch flushed", "events", len(batch))
}
