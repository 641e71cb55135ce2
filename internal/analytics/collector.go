package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
)

// Publisher is the subset of kafka.Producer used by Collector.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector publishes events from a buffered channel on a background
// goroutine so that request handlers never block on Kafka.
type Collector struct {
	producer Publisher
	eventCh  chan Event
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan Event, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start runs the publish loop until ctx is cancelled or Close is called.
// Events still buffered at cancellation are published before returning.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues event, dropping it when the buffer is full.
func (c *Collector) Track(event Event) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.Kind())
	}
}

// Close stops accepting events and waits for the publish loop to exit.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(ctx, event)
		default:
			return
		}
	}
}

func (c *Collector) publish(ctx context.Context, event Event) {
	err := c.producer.Publish(ctx, kafka.Event{
		Key:   event.Key(),
		Type:  string(event.Kind()),
		Value: event,
	})
	if err != nil {
		c.logger.Error("failed to publish analytics event", "type", event.Kind(), "error", err)
	}
}
