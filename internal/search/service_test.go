package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talfrim/searchengine/internal/docstore"
	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/internal/search/semantic"
	"github.com/talfrim/searchengine/internal/search/tokenizer"
	"github.com/talfrim/searchengine/pkg/config"
	apperrors "github.com/talfrim/searchengine/pkg/errors"
)

var testStops = []string{"the", "of", "a", "is"}

func testRanking() config.RankingConfig {
	return config.RankingConfig{
		K1:           1.2,
		B:            0.865,
		CorpusSize:   472522,
		AvgDocLength: 250,
		WeightBM25:   0.6,
		WeightHeader: 0.05,
		WeightQuery:  0.85,
	}
}

// buildCorpus persists a small unstemmed dictionary: "cat" appears in DOC-1
// (tf=3) and DOC-2 (tf=1), "dog" only in DOC-2, "feline" only in DOC-3.
func buildCorpus(t *testing.T, dir string) {
	t.Helper()

	b := index.NewBuilder(dir, index.Unstemmed)
	b.Add(index.DocumentTokens{
		DocNo:       "DOC-1",
		Length:      250,
		HeaderTerms: []string{"cat"},
		Occurrences: []index.TermOccurrence{
			{Term: "cat", Count: 3, InHeader: true},
		},
	})
	b.Add(index.DocumentTokens{
		DocNo:  "DOC-2",
		Length: 250,
		Occurrences: []index.TermOccurrence{
			{Term: "cat", Count: 1},
			{Term: "dog", Count: 2},
		},
	})
	b.Add(index.DocumentTokens{
		DocNo:  "DOC-3",
		Length: 250,
		Occurrences: []index.TermOccurrence{
			{Term: "feline", Count: 4},
		},
	})
	_, err := b.Flush()
	require.NoError(t, err)
}

func newTestService(t *testing.T, dir string, store *docstore.Store, exp semantic.Expander) *Service {
	t.Helper()

	dict, err := index.Load(dir, index.Unstemmed)
	require.NoError(t, err)
	t.Cleanup(func() { dict.Close() })

	svc, err := NewService(
		dir, dict, store,
		tokenizer.New(index.Unstemmed, testStops),
		exp, testRanking(), 4, nil,
	)
	require.NoError(t, err)
	svc.SetStopWords(testStops)
	return svc
}

func TestSearchRanksHigherTermFreqFirst(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)

	res, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)

	assert.Equal(t, "DOC-1", res.Results[0].DocNo)
	assert.Equal(t, "DOC-2", res.Results[1].DocNo)
	assert.Greater(t, res.Results[0].Score, res.Results[1].Score)
}

func TestSearchStopWordsOnlyIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)

	res, err := svc.Search(context.Background(), Query{Text: "the of a"}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestSearchUnknownTermsYieldEmpty(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)

	res, err := svc.Search(context.Background(), Query{Text: "zebra quagga"}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestSearchLimitTruncatesAfterRanking(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)

	res, err := svc.Search(context.Background(), Query{Text: "cat dog"}, Options{Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	// DOC-2 matches both terms and outscores DOC-1, so it survives the cut.
	assert.Equal(t, "DOC-2", res.Results[0].DocNo)
	// The candidate count reflects the pre-truncation set.
	assert.Equal(t, 2, res.Candidates)
}

func TestSearchAllPreservesQueryOrder(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)

	queries := []Query{
		{ID: "301", Text: "dog"},
		{ID: "302", Text: "cat"},
		{ID: "303", Text: "the of"},
	}
	all, err := svc.SearchAll(context.Background(), queries, Options{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, "301", all[0].ID)
	assert.Equal(t, "302", all[1].ID)
	assert.Equal(t, "303", all[2].ID)
	assert.Len(t, all[0].Results, 1)
	assert.Len(t, all[1].Results, 2)
	assert.Empty(t, all[2].Results)
}

func TestSearchSemanticExpansionAddsCandidates(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	exp := semantic.NewStatic(map[string][]string{
		"cat": {"feline"},
	})
	svc := newTestService(t, dir, nil, exp)

	plain, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{})
	require.NoError(t, err)
	require.Len(t, plain.Results, 2)

	expanded, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{Semantic: true})
	require.NoError(t, err)
	require.Len(t, expanded.Results, 3)

	docNos := make([]string, 0, 3)
	for _, r := range expanded.Results {
		docNos = append(docNos, r.DocNo)
	}
	assert.Contains(t, docNos, "DOC-3")
}

func TestSearchSemanticWithoutExpanderDegrades(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)

	res, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{Semantic: true})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestSearchResolvesMetadataFromStore(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)

	storeDir := t.TempDir()
	w, err := docstore.OpenWriter(storeDir, 3)
	require.NoError(t, err)
	require.NoError(t, w.Append([]string{"DOC-1", "19940301", "city:12", "CLINTON-3"}))
	require.NoError(t, w.Append([]string{"DOC-2", "19940515", "city:7", "CONGRESS-5"}))
	require.NoError(t, w.Close())
	store, err := docstore.Open(storeDir, 3, false)
	require.NoError(t, err)

	svc := newTestService(t, dir, store, nil)

	res, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{Entities: true})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "19940301", res.Results[0].Date)
	assert.Equal(t, "CLINTON-3", res.Results[0].Entities)
}

func TestSearchMetadataFailureDoesNotAbortRanking(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)

	// Store knows only DOC-2; DOC-1 still ranks, just without metadata.
	storeDir := t.TempDir()
	w, err := docstore.OpenWriter(storeDir, 2)
	require.NoError(t, err)
	require.NoError(t, w.Append([]string{"DOC-2", "19940515"}))
	require.NoError(t, w.Close())
	store, err := docstore.Open(storeDir, 2, false)
	require.NoError(t, err)

	svc := newTestService(t, dir, store, nil)

	res, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Empty(t, res.Results[0].Date)
	assert.Equal(t, "19940515", res.Results[1].Date)
}

func TestSearchEntitiesOmittedUnlessRequested(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)

	storeDir := t.TempDir()
	w, err := docstore.OpenWriter(storeDir, 1)
	require.NoError(t, err)
	require.NoError(t, w.Append([]string{"DOC-1", "19940301", "city:12", "CLINTON-3"}))
	require.NoError(t, w.Close())
	store, err := docstore.Open(storeDir, 1, false)
	require.NoError(t, err)

	svc := newTestService(t, dir, store, nil)

	res, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "19940301", res.Results[0].Date)
	assert.Empty(t, res.Results[0].Entities)
}

func TestNewServiceRejectsVariantMismatch(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)

	dict, err := index.Load(dir, index.Unstemmed)
	require.NoError(t, err)
	defer dict.Close()

	_, err = NewService(
		dir, dict, nil,
		tokenizer.New(index.Stemmed, testStops),
		nil, testRanking(), 4, nil,
	)
	assert.ErrorIs(t, err, apperrors.ErrVariantMismatch)
}

func TestSearchWithoutDictionaryFails(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(
		dir, nil, nil,
		tokenizer.New(index.Unstemmed, testStops),
		nil, testRanking(), 4, nil,
	)
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), Query{Text: "cat"}, Options{})
	assert.ErrorIs(t, err, apperrors.ErrDictionaryNotLoaded)
	assert.False(t, svc.Loaded())
}

func TestResetUnloadsAndDeletesIndex(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)
	require.True(t, svc.Loaded())

	require.NoError(t, svc.Reset())
	assert.False(t, svc.Loaded())

	_, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{})
	assert.ErrorIs(t, err, apperrors.ErrDictionaryNotLoaded)

	// The files are gone too, so a reload must fail.
	assert.ErrorIs(t, svc.Reload(index.Unstemmed), apperrors.ErrDictionaryNotLoaded)
}

func TestReloadActivatesVariant(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)

	svc, err := NewService(
		dir, nil, nil,
		tokenizer.New(index.Unstemmed, testStops),
		nil, testRanking(), 4, nil,
	)
	require.NoError(t, err)
	svc.SetStopWords(testStops)

	require.NoError(t, svc.Reload(index.Unstemmed))
	assert.True(t, svc.Loaded())
	assert.Equal(t, index.Unstemmed, svc.Mode())

	res, err := svc.Search(context.Background(), Query{Text: "cat"}, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestSearchDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	buildCorpus(t, dir)
	svc := newTestService(t, dir, nil, nil)

	first, err := svc.Search(context.Background(), Query{Text: "cat dog"}, Options{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.Search(context.Background(), Query{Text: "cat dog"}, Options{})
		require.NoError(t, err)
		assert.Equal(t, first.Results, again.Results)
	}
}
