// Package ranker implements the relevance scoring model: a blend of BM25,
// cosine similarity over idf-weighted term vectors, and header-term matching,
// with an optional semantically expanded component. Scoring is a pure
// function of its input; a Ranker may be invoked concurrently across
// documents and queries.
package ranker

import (
	"math"

	"github.com/talfrim/searchengine/pkg/config"
)

// DocRankData is the per-(query, candidate document) scoring input. The tf
// and df slices are parallel: entry i describes query term i. Semantic
// slices describe the expansion neighbors and stay separate from the
// original query statistics. The struct is owned by one scoring call and
// discarded afterwards.
type DocRankData struct {
	QueryTerms []string // unstemmed, for the header check
	QueryTFs   []int
	QueryDFs   []int

	SemanticTerms []string
	SemanticTFs   []int
	SemanticDFs   []int

	DocLength   int
	HeaderTerms map[string]struct{}
}

// Ranker scores documents with a fixed parameter set.
type Ranker struct {
	cfg      config.RankingConfig
	semantic bool
}

// New creates a Ranker. With semantic set, the expansion component is
// blended in at weight 1-WeightQuery.
func New(cfg config.RankingConfig, semantic bool) *Ranker {
	return &Ranker{cfg: cfg, semantic: semantic}
}

// Score computes the final relevance score for one candidate document.
func (r *Ranker) Score(d DocRankData) float64 {
	queryScore := r.blend(d.QueryTerms, d.QueryTFs, d.QueryDFs, d.DocLength, d.HeaderTerms)
	if !r.semantic {
		return queryScore
	}
	semanticScore := r.blend(d.SemanticTerms, d.SemanticTFs, d.SemanticDFs, d.DocLength, d.HeaderTerms)
	wq := r.cfg.WeightQuery
	return wq*queryScore + (1-wq)*semanticScore
}

// blend combines the three per-term-set scores with the configured weights.
// The cosine weight is whatever the BM25 and header weights leave over.
func (r *Ranker) blend(terms []string, tfs, dfs []int, docLen int, header map[string]struct{}) float64 {
	wBM25 := r.cfg.WeightBM25
	wHeader := r.cfg.WeightHeader
	wCos := 1 - wBM25 - wHeader
	return wBM25*r.bm25(tfs, dfs, docLen) +
		wHeader*headerScore(terms, header) +
		wCos*cosSim(tfs, dfs, r.idf)
}

// bm25 sums the per-term BM25 contributions. The idf is not clamped at
// zero: terms appearing in more than half the corpus contribute negatively,
// which is accepted BM25 behavior here.
func (r *Ranker) bm25(tfs, dfs []int, docLen int) float64 {
	var sum float64
	for i := range tfs {
		sum += r.bm25Term(tfs[i], dfs[i], docLen)
	}
	return sum
}

func (r *Ranker) bm25Term(tf, df, docLen int) float64 {
	k1 := r.cfg.K1
	b := r.cfg.B
	lengthRatio := float64(docLen) / r.cfg.AvgDocLength
	numerator := float64(tf) * (k1 + 1)
	denominator := float64(tf) + k1*(1-b+b*lengthRatio)
	return r.idf(df) * numerator / denominator
}

// idf is log2((N-df+0.5)/(df+0.5)) over the fixed corpus size. Monotonically
// decreasing in df; roughly zero at df = N/2.
func (r *Ranker) idf(df int) float64 {
	n := float64(r.cfg.CorpusSize)
	return math.Log2((n - float64(df) + 0.5) / (float64(df) + 0.5))
}

// headerScore is the fraction of terms present verbatim in the document's
// header set. An empty term list scores 0 rather than dividing by zero.
func headerScore(terms []string, header map[string]struct{}) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if _, ok := header[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// cosSim is the cosine similarity between an all-ones query vector and a
// document vector whose component i is tf_i * idf(df_i).
func cosSim(tfs, dfs []int, idf func(int) float64) float64 {
	if len(tfs) == 0 {
		return 0
	}
	var dot, normQ, normD float64
	for i := range tfs {
		docComponent := float64(tfs[i]) * idf(dfs[i])
		dot += docComponent
		normQ++
		normD += docComponent * docComponent
	}
	denom := math.Sqrt(normQ) * math.Sqrt(normD)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
