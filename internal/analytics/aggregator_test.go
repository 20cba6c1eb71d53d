package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackSearch(t *testing.T, agg *Aggregator, event SearchEvent) {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, HandleEvent(agg, nil)(context.Background(), nil, data))
}

func TestAggregatorCountsSearchEvents(t *testing.T) {
	agg := NewAggregator(nil)

	trackSearch(t, agg, SearchEvent{
		Type: EventSearch, Query: "budget deficit",
		Returned: 5, LatencyMs: 12, CacheHit: false,
		Timestamp: time.Now().UTC(),
	})
	trackSearch(t, agg, SearchEvent{
		Type: EventCacheHit, Query: "budget deficit",
		Returned: 5, LatencyMs: 1, CacheHit: true,
		Timestamp: time.Now().UTC(),
	})
	trackSearch(t, agg, SearchEvent{
		Type: EventZeroResult, Query: "xyzzy",
		Returned: 0, LatencyMs: 3, Semantic: true,
		Timestamp: time.Now().UTC(),
	})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.SemanticQueries)
	assert.Positive(t, stats.AvgLatencyMs)
}

func TestAggregatorTopQueries(t *testing.T) {
	agg := NewAggregator(nil)

	for i := 0; i < 3; i++ {
		trackSearch(t, agg, SearchEvent{Type: EventSearch, Query: "popular", Returned: 1})
	}
	trackSearch(t, agg, SearchEvent{Type: EventSearch, Query: "rare", Returned: 1})

	stats := agg.Stats()
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, "popular", stats.TopQueries[0].Query)
	assert.Equal(t, int64(3), stats.TopQueries[0].Count)
}

func TestAggregatorZeroResultQueries(t *testing.T) {
	agg := NewAggregator(nil)

	trackSearch(t, agg, SearchEvent{Type: EventSearch, Query: "found", Returned: 2})
	trackSearch(t, agg, SearchEvent{Type: EventZeroResult, Query: "nothing", Returned: 0})

	stats := agg.Stats()
	require.Len(t, stats.ZeroResultQueries, 1)
	assert.Equal(t, "nothing", stats.ZeroResultQueries[0].Query)
}

func TestAggregatorCountsIndexEvents(t *testing.T) {
	agg := NewAggregator(nil)

	data, err := json.Marshal(IndexEvent{
		Type: EventIndexFlush, Variant: "stemmed",
		Documents: 100, Terms: 5000,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, HandleEvent(agg, nil)(context.Background(), nil, data))

	assert.Equal(t, int64(1), agg.Stats().TotalIndexFlushes)
}

func TestAggregatorSkipsUndecodableEvents(t *testing.T) {
	agg := NewAggregator(nil)

	// Garbage must be dropped, not retried and not counted.
	require.NoError(t, HandleEvent(agg, nil)(context.Background(), nil, []byte("not json")))
	assert.Zero(t, agg.Stats().TotalSearches)
}

func TestPercentile(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, int64(6), percentile(sorted, 50))
	assert.Equal(t, int64(10), percentile(sorted, 95))
	assert.Zero(t, percentile(nil, 50))
}
