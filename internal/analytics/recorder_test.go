package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]SearchEvent
}

func (m *memorySink) SaveEventBatch(_ context.Context, events []SearchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, events)
	return nil
}

func (m *memorySink) all() []SearchEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SearchEvent
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func TestRecorderPersistsFullBatches(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, 3)
	ctx := context.Background()

	rec.Record(ctx, SearchEvent{Type: EventSearch, Query: "one"})
	rec.Record(ctx, SearchEvent{Type: EventSearch, Query: "two"})
	assert.Empty(t, sink.batches, "partial batch must stay buffered")

	rec.Record(ctx, SearchEvent{Type: EventSearch, Query: "three"})
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)
	assert.Equal(t, "one", sink.batches[0][0].Query)
}

func TestRecorderFlushPersistsPartialBatch(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, 100)
	ctx := context.Background()

	rec.Record(ctx, SearchEvent{Type: EventSearch, Query: "pending"})
	rec.Flush(ctx)

	require.Len(t, sink.batches, 1)
	assert.Equal(t, "pending", sink.batches[0][0].Query)

	// A flush with nothing buffered must not hit the sink.
	rec.Flush(ctx)
	assert.Len(t, sink.batches, 1)
}

func TestHandleEventFeedsRecorder(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, 1)
	agg := NewAggregator(nil)
	handle := HandleEvent(agg, rec)

	data, err := json.Marshal(SearchEvent{
		Type: EventSearch, Query: "budget deficit",
		Candidates: 7, Returned: 5, LatencyMs: 12,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), nil, data))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "budget deficit", events[0].Query)
	assert.Equal(t, 7, events[0].Candidates)
}

func TestHandleEventSkipsRecorderForIndexEvents(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, 1)
	agg := NewAggregator(nil)

	data, err := json.Marshal(NewIndexFlushEvent("stemmed", 100, 5000, 2*time.Second))
	require.NoError(t, err)
	require.NoError(t, HandleEvent(agg, rec)(context.Background(), nil, data))

	assert.Empty(t, sink.all(), "flush events belong to the aggregator only")
	assert.Equal(t, int64(1), agg.Stats().TotalIndexFlushes)
}

func TestNewIndexFlushEvent(t *testing.T) {
	event := NewIndexFlushEvent("unstemmed", 472522, 180000, 90*time.Second)

	assert.Equal(t, EventIndexFlush, event.Type)
	assert.Equal(t, "unstemmed", event.Variant)
	assert.Equal(t, 472522, event.Documents)
	assert.Equal(t, 180000, event.Terms)
	assert.Equal(t, int64(90000), event.LatencyMs)
	assert.False(t, event.Timestamp.IsZero())
}
