package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	batches [][]kafka.Event
	err     error
}

func (s *recordingSink) PublishBatch(_ context.Context, events []kafka.Event) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]kafka.Event(nil), events...))
	return nil
}

func TestPublishBatchesAndRejects(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, 2)
	docs := []ingestion.Document{
		{ID: "a", Body: "one"},
		{ID: "", Body: "no id"},
		{ID: "b", Body: "two"},
		{ID: "c", Body: "three"},
	}
	published, rejected, err := p.Publish(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 3, published)
	assert.Equal(t, 1, rejected)
	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], 2)
	assert.Len(t, sink.batches[1], 1)

	first := sink.batches[0][0]
	assert.Equal(t, "a", first.Key)
	assert.Equal(t, ingestion.EventType, first.Type)
	event, ok := first.Value.(ingestion.IngestEvent)
	require.True(t, ok)
	assert.Equal(t, "one", event.Body)
}

func TestPublishPropagatesSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	_, _, err := New(sink, 10).Publish(context.Background(), []ingestion.Document{{ID: "a", Body: "x"}})
	assert.ErrorContains(t, err, "broker down")
}
