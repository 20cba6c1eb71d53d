package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talfrim/searchengine/pkg/config"
)

func testRankingConfig() config.RankingConfig {
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

func TestIDF_DecreasesWithDocFreq(t *testing.T) {
	r := New(testRankingConfig(), false)

	prev := r.idf(1)
	for _, df := range []int{10, 100, 10000, 100000} {
		cur := r.idf(df)
		assert.Less(t, cur, prev, "idf must decrease as df grows (df=%d)", df)
		prev = cur
	}
}

func TestIDF_NearZeroAtHalfCorpus(t *testing.T) {
	cfg := testRankingConfig()
	r := New(cfg, false)

	assert.InDelta(t, 0, r.idf(cfg.CorpusSize/2), 0.001)
}

func TestIDF_NegativeForVeryCommonTerms(t *testing.T) {
	cfg := testRankingConfig()
	r := New(cfg, false)

	// Unclamped: a term in nearly every document scores below zero.
	assert.Negative(t, r.idf(cfg.CorpusSize-1))
}

func TestBM25_IncreasesWithTermFreq(t *testing.T) {
	r := New(testRankingConfig(), false)

	prev := r.bm25Term(1, 100, 250)
	for tf := 2; tf <= 10; tf++ {
		cur := r.bm25Term(tf, 100, 250)
		assert.Greater(t, cur, prev, "bm25 must increase with tf (tf=%d)", tf)
		prev = cur
	}
}

func TestBM25_PenalizesLongDocuments(t *testing.T) {
	r := New(testRankingConfig(), false)

	short := r.bm25Term(3, 100, 100)
	long := r.bm25Term(3, 100, 2000)
	assert.Greater(t, short, long)
}

func TestHeaderScore(t *testing.T) {
	header := map[string]struct{}{
		"budget":  {},
		"deficit": {},
	}

	tests := []struct {
		name  string
		terms []string
		want  float64
	}{
		{"all terms in header", []string{"budget", "deficit"}, 1.0},
		{"half in header", []string{"budget", "treasury"}, 0.5},
		{"none in header", []string{"treasury", "bonds"}, 0.0},
		{"empty term list", nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, headerScore(tt.terms, header), 1e-12)
		})
	}
}

func TestHeaderScore_EmptyHeaderSet(t *testing.T) {
	assert.Zero(t, headerScore([]string{"budget"}, nil))
}

func TestCosSim_PerfectForSingleTerm(t *testing.T) {
	r := New(testRankingConfig(), false)

	// One term: the document vector is a scalar multiple of the query
	// vector, so similarity is exactly 1.
	got := cosSim([]int{5}, []int{100}, r.idf)
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestCosSim_ZeroWhenNoOverlap(t *testing.T) {
	r := New(testRankingConfig(), false)

	assert.Zero(t, cosSim([]int{0, 0}, []int{100, 200}, r.idf))
	assert.Zero(t, cosSim(nil, nil, r.idf))
}

func TestScore_Deterministic(t *testing.T) {
	r := New(testRankingConfig(), false)
	d := DocRankData{
		QueryTerms:  []string{"budget", "deficit"},
		QueryTFs:    []int{3, 1},
		QueryDFs:    []int{120, 450},
		DocLength:   240,
		HeaderTerms: map[string]struct{}{"budget": {}},
	}

	first := r.Score(d)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Score(d))
	}
}

func TestScore_HigherTermFreqWins(t *testing.T) {
	r := New(testRankingConfig(), false)

	frequent := r.Score(DocRankData{
		QueryTerms: []string{"cat"},
		QueryTFs:   []int{3},
		QueryDFs:   []int{2},
		DocLength:  250,
	})
	rare := r.Score(DocRankData{
		QueryTerms: []string{"cat"},
		QueryTFs:   []int{1},
		QueryDFs:   []int{2},
		DocLength:  250,
	})
	assert.Greater(t, frequent, rare)
}

func TestScore_HeaderMatchBreaksTie(t *testing.T) {
	r := New(testRankingConfig(), false)

	base := DocRankData{
		QueryTerms: []string{"budget"},
		QueryTFs:   []int{2},
		QueryDFs:   []int{100},
		DocLength:  250,
	}
	withHeader := base
	withHeader.HeaderTerms = map[string]struct{}{"budget": {}}

	assert.Greater(t, r.Score(withHeader), r.Score(base))
}

func TestScore_SemanticBlending(t *testing.T) {
	cfg := testRankingConfig()
	plain := New(cfg, false)
	semantic := New(cfg, true)

	d := DocRankData{
		QueryTerms:    []string{"budget"},
		QueryTFs:      []int{2},
		QueryDFs:      []int{100},
		SemanticTerms: []string{"deficit"},
		SemanticTFs:   []int{4},
		SemanticDFs:   []int{80},
		DocLength:     250,
	}

	queryOnly := plain.Score(d)
	blended := semantic.Score(d)

	semPart := DocRankData{
		QueryTerms: d.SemanticTerms,
		QueryTFs:   d.SemanticTFs,
		QueryDFs:   d.SemanticDFs,
		DocLength:  d.DocLength,
	}
	semOnly := plain.Score(semPart)

	want := cfg.WeightQuery*queryOnly + (1-cfg.WeightQuery)*semOnly
	require.InDelta(t, want, blended, 1e-9)
}

func TestScore_SemanticIgnoredWhenDisabled(t *testing.T) {
	cfg := testRankingConfig()
	r := New(cfg, false)

	with := DocRankData{
		QueryTerms:    []string{"budget"},
		QueryTFs:      []int{2},
		QueryDFs:      []int{100},
		SemanticTerms: []string{"deficit"},
		SemanticTFs:   []int{40},
		SemanticDFs:   []int{80},
		DocLength:     250,
	}
	without := with
	without.SemanticTerms = nil
	without.SemanticTFs = nil
	without.SemanticDFs = nil

	assert.Equal(t, r.Score(without), r.Score(with))
}

func TestScore_WeightsSumObserved(t *testing.T) {
	// With a document that maxes every component, the blend cannot exceed
	// the weighted sum of the components.
	cfg := testRankingConfig()
	r := New(cfg, false)

	d := DocRankData{
		QueryTerms:  []string{"budget"},
		QueryTFs:    []int{10},
		QueryDFs:    []int{1},
		DocLength:   100,
		HeaderTerms: map[string]struct{}{"budget": {}},
	}
	score := r.Score(d)
	bm25Max := r.bm25Term(10, 1, 100)
	upper := cfg.WeightBM25*bm25Max + cfg.WeightHeader*1 + (1-cfg.WeightBM25-cfg.WeightHeader)*1
	assert.LessOrEqual(t, score, upper+1e-9)
	assert.Positive(t, score)
}
