// Package handler exposes the search engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/talfrim/searchengine/internal/analytics"
	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/internal/search"
	"github.com/talfrim/searchengine/internal/search/cache"
	apperrors "github.com/talfrim/searchengine/pkg/errors"
	"github.com/talfrim/searchengine/pkg/logger"
	"github.com/talfrim/searchengine/pkg/metrics"
)

// Searcher is the slice of the search service the HTTP layer needs.
type Searcher interface {
	Search(ctx context.Context, q search.Query, opts search.Options) (search.QueryResults, error)
	Reset() error
	Reload(mode index.Mode) error
	Loaded() bool
}

type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(
	searcher Searcher,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	defaultLimit, maxResults int,
) *Handler {
	return &Handler{
		searcher:     searcher,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=&limit=&semantic=&entities=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	opts := search.Options{
		Limit:    h.defaultLimit,
		Semantic: parseBool(r.URL.Query().Get("semantic")),
		Entities: parseBool(r.URL.Query().Get("entities")),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		opts.Limit = parsed
	}

	var (
		result   *search.QueryResults
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, opts, func() (*search.QueryResults, error) {
			res, serr := h.searcher.Search(ctx, search.Query{Text: query}, opts)
			if serr != nil {
				return nil, serr
			}
			return &res, nil
		})
	} else {
		var res search.QueryResults
		res, err = h.searcher.Search(ctx, search.Query{Text: query}, opts)
		result = &res
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
	log.Info("search completed",
		"query", query,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		if len(result.Results) == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.Track(analytics.SearchEvent{
			Type:       eventType,
			Query:      query,
			Semantic:   opts.Semantic,
			Candidates: result.Candidates,
			Returned:   len(result.Results),
			LatencyMs:  latencyMs,
			CacheHit:   cacheHit,
			Timestamp:  time.Now().UTC(),
			RequestID:  logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Reset handles POST /api/v1/index/reset: it drops the loaded dictionary,
// deletes the persisted index files, and empties the query cache.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.searcher.Reset(); err != nil {
		h.logger.Error("index reset failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "index reset failed")
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Error("cache invalidation after reset failed", "error", err)
		}
	}
	h.logger.Info("index reset")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Reload handles POST /api/v1/index/reload?variant=stemmed|unstemmed.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	mode := index.Unstemmed
	switch v := r.URL.Query().Get("variant"); v {
	case "", "unstemmed":
	case "stemmed":
		mode = index.Stemmed
	default:
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown variant %q", v))
		return
	}
	if err := h.searcher.Reload(mode); err != nil {
		h.logger.Error("dictionary reload failed", "variant", mode.String(), "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "dictionary reload failed")
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Error("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "loaded",
		"variant": mode.String(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
