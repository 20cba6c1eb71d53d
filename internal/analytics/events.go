package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventIndexFlush EventType = "index_flush"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent records one executed query for the analytics pipeline.
type SearchEvent struct {
	Type       EventType `json:"type"`
	QueryID    string    `json:"query_id,omitempty"`
	Query      string    `json:"query"`
	Semantic   bool      `json:"semantic"`
	Candidates int       `json:"candidates"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// IndexEvent records one index flush: a dictionary variant written to disk.
type IndexEvent struct {
	Type      EventType `json:"type"`
	Variant   string    `json:"variant"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewIndexFlushEvent builds the event the indexer publishes after writing
// a dictionary variant to disk.
func NewIndexFlushEvent(variant string, documents, terms int, elapsed time.Duration) IndexEvent {
	return IndexEvent{
		Type:      EventIndexFlush,
		Variant:   variant,
		Documents: documents,
		Terms:     terms,
		LatencyMs: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}
