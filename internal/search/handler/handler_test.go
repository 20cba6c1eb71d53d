package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/internal/search"
	apperrors "github.com/talfrim/searchengine/pkg/errors"
)

type stubSearcher struct {
	lastQuery search.Query
	lastOpts  search.Options
	results   search.QueryResults
	err       error
	resetErr  error
	loaded    bool
}

func (s *stubSearcher) Search(ctx context.Context, q search.Query, opts search.Options) (search.QueryResults, error) {
	s.lastQuery = q
	s.lastOpts = opts
	if s.err != nil {
		return search.QueryResults{}, s.err
	}
	return s.results, nil
}

func (s *stubSearcher) Reset() error                 { return s.resetErr }
func (s *stubSearcher) Reload(mode index.Mode) error { return s.err }
func (s *stubSearcher) Loaded() bool                 { return s.loaded }

func newTestHandler(stub *stubSearcher) *Handler {
	return New(stub, nil, nil, nil, 10, 100)
}

func TestSearchRequiresQueryParam(t *testing.T) {
	h := newTestHandler(&stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchReturnsRankedResults(t *testing.T) {
	stub := &stubSearcher{
		results: search.QueryResults{
			Query:      "budget",
			Candidates: 4,
			Results: []search.Result{
				{DocNo: "FBIS3-10001", Score: 12.5, Date: "19940301"},
			},
		},
	}
	h := newTestHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=budget", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got search.QueryResults
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Results, 1)
	assert.Equal(t, "FBIS3-10001", got.Results[0].DocNo)
	assert.Equal(t, 4, got.Candidates)

	assert.Equal(t, "budget", stub.lastQuery.Text)
	assert.Equal(t, 10, stub.lastOpts.Limit)
	assert.False(t, stub.lastOpts.Semantic)
}

func TestSearchParsesOptions(t *testing.T) {
	stub := &stubSearcher{}
	h := newTestHandler(stub)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/search?q=budget&limit=5&semantic=true&entities=true", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, stub.lastOpts.Limit)
	assert.True(t, stub.lastOpts.Semantic)
	assert.True(t, stub.lastOpts.Entities)
}

func TestSearchClampsLimitToMax(t *testing.T) {
	stub := &stubSearcher{}
	h := newTestHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=budget&limit=9999", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, stub.lastOpts.Limit)
}

func TestSearchRejectsBadLimit(t *testing.T) {
	h := newTestHandler(&stubSearcher{})

	for _, limit := range []string{"0", "-3", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=budget&limit="+limit, nil)
		rec := httptest.NewRecorder()
		h.Search(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestSearchMapsDictionaryNotLoadedToConflict(t *testing.T) {
	h := newTestHandler(&stubSearcher{err: apperrors.ErrDictionaryNotLoaded})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=budget", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResetEndpoint(t *testing.T) {
	h := newTestHandler(&stubSearcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/reset", nil)
	rec := httptest.NewRecorder()
	h.Reset(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "reset", body["status"])
}

func TestReloadRejectsUnknownVariant(t *testing.T) {
	h := newTestHandler(&stubSearcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/reload?variant=porter", nil)
	rec := httptest.NewRecorder()
	h.Reload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	h := newTestHandler(&stubSearcher{})

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
