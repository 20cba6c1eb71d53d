package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler serves the live aggregated stats and the last persisted snapshot.
type Handler struct {
	aggregator *Aggregator
	store      *Store
	logger     *slog.Logger
}

// NewHandler wires the analytics endpoints. store may be nil when no
// database is configured; the snapshot endpoint then reports unavailable.
func NewHandler(aggregator *Aggregator, store *Store) *Handler {
	return &Handler{
		aggregator: aggregator,
		store:      store,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Snapshot serves the most recent persisted snapshot, surviving restarts
// where the in-memory counters start from zero.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot store not configured"})
		return
	}
	stats, err := h.store.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to load analytics snapshot", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load snapshot"})
		return
	}
	if stats == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot persisted yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
