package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventSink persists consumed search events. *Store satisfies it.
type EventSink interface {
	SaveEventBatch(ctx context.Context, events []SearchEvent) error
}

// Recorder buffers search events coming off the analytics topic and writes
// them to the sink in batches, so the consumer loop never pays a per-event
// database round trip.
type Recorder struct {
	sink      EventSink
	batchSize int
	logger    *slog.Logger

	mu  sync.Mutex
	buf []SearchEvent
}

func NewRecorder(sink EventSink, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = 256
	}
	return &Recorder{
		sink:      sink,
		batchSize: batchSize,
		buf:       make([]SearchEvent, 0, batchSize),
		logger:    slog.Default().With("component", "analytics-recorder"),
	}
}

// Record buffers one event and flushes when a full batch has accumulated.
// A persistence failure is logged; the events of that batch are dropped
// rather than held forever.
func (r *Recorder) Record(ctx context.Context, event SearchEvent) {
	r.mu.Lock()
	r.buf = append(r.buf, event)
	var full []SearchEvent
	if len(r.buf) >= r.batchSize {
		full = r.buf
		r.buf = make([]SearchEvent, 0, r.batchSize)
	}
	r.mu.Unlock()
	if full != nil {
		r.persist(ctx, full)
	}
}

// Flush persists whatever is buffered, regardless of batch size.
func (r *Recorder) Flush(ctx context.Context) {
	r.mu.Lock()
	pending := r.buf
	r.buf = make([]SearchEvent, 0, r.batchSize)
	r.mu.Unlock()
	if len(pending) > 0 {
		r.persist(ctx, pending)
	}
}

// Start flushes partial batches on an interval until ctx is cancelled,
// then drains the buffer one last time.
func (r *Recorder) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				r.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
}

func (r *Recorder) persist(ctx context.Context, events []SearchEvent) {
	if err := r.sink.SaveEventBatch(ctx, events); err != nil {
		r.logger.Error("persisting search events failed",
			"count", len(events),
			"error", err,
		)
	}
}
