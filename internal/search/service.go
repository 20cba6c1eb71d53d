// Package search orchestrates queries end to end: term resolution against
// the dictionary, candidate gathering from postings, optional semantic
// expansion, concurrent scoring, and metadata resolution from the document
// store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talfrim/searchengine/internal/docstore"
	"github.com/talfrim/searchengine/internal/index"
	"github.com/talfrim/searchengine/internal/search/ranker"
	"github.com/talfrim/searchengine/internal/search/semantic"
	"github.com/talfrim/searchengine/internal/search/tokenizer"
	"github.com/talfrim/searchengine/pkg/config"
	apperrors "github.com/talfrim/searchengine/pkg/errors"
	"github.com/talfrim/searchengine/pkg/metrics"
)

// Query is one free-text query with an external id (empty for ad-hoc
// queries).
type Query struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// Options controls one search invocation.
type Options struct {
	Semantic bool
	Entities bool
	Limit    int
}

// Result is one ranked document with optional resolved metadata.
type Result struct {
	DocNo    string  `json:"doc_no"`
	Score    float64 `json:"score"`
	Date     string  `json:"date,omitempty"`
	Entities string  `json:"entities,omitempty"`
}

// QueryResults holds the ordered results of one query. Candidates is the
// size of the candidate set before ranking and truncation.
type QueryResults struct {
	ID         string   `json:"id,omitempty"`
	Query      string   `json:"query"`
	Candidates int      `json:"candidates"`
	Results    []Result `json:"results"`
}

// Service owns the loaded dictionary, the document store, and the scoring
// configuration. The RWMutex serializes Reset and Reload against in-flight
// queries: queries take the read side, lifecycle transitions the write side.
type Service struct {
	mu sync.RWMutex

	dataDir   string
	stopWords []string
	dict      *index.Dictionary
	tok       *tokenizer.Tokenizer
	store     *docstore.Store
	expander  semantic.Expander
	ranking   config.RankingConfig

	scoringConcurrency int
	metrics            *metrics.Metrics
	logger             *slog.Logger
}

// NewService wires a Service. dict may be nil (not yet loaded); when
// non-nil its variant must match the tokenizer's. expander and m may be nil.
func NewService(
	dataDir string,
	dict *index.Dictionary,
	store *docstore.Store,
	tok *tokenizer.Tokenizer,
	expander semantic.Expander,
	ranking config.RankingConfig,
	scoringConcurrency int,
	m *metrics.Metrics,
) (*Service, error) {
	if dict != nil && dict.Mode() != tok.Mode() {
		return nil, fmt.Errorf("%w: dictionary is %s, tokenizer is %s",
			apperrors.ErrVariantMismatch, dict.Mode(), tok.Mode())
	}
	if scoringConcurrency <= 0 {
		scoringConcurrency = 8
	}
	return &Service{
		dataDir:            dataDir,
		dict:               dict,
		store:              store,
		tok:                tok,
		expander:           expander,
		ranking:            ranking,
		scoringConcurrency: scoringConcurrency,
		metrics:            m,
		logger:             slog.Default().With("component", "searcher"),
	}, nil
}

// SetStopWords records the stop-word list used when rebuilding the tokenizer
// on Reload.
func (s *Service) SetStopWords(words []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWords = words
}

// Loaded reports whether a dictionary variant is currently active.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dict != nil
}

// Mode returns the active dictionary variant, valid only when Loaded.
func (s *Service) Mode() index.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dict == nil {
		return index.Unstemmed
	}
	return s.dict.Mode()
}

// SearchAll runs every query and returns one QueryResults per input query,
// in input order. A failure inside one query is logged and yields an empty
// result list for that query without aborting the rest; only a missing
// dictionary fails the whole call.
func (s *Service) SearchAll(ctx context.Context, queries []Query, opts Options) ([]QueryResults, error) {
	out := make([]QueryResults, 0, len(queries))
	for _, q := range queries {
		res, err := s.Search(ctx, q, opts)
		if err != nil {
			if ctx.Err() != nil || isPrecondition(err) {
				return nil, err
			}
			s.logger.Error("query failed, returning empty results",
				"query_id", q.ID,
				"query", q.Text,
				"error", err,
			)
			res = QueryResults{ID: q.ID, Query: q.Text, Results: []Result{}}
		}
		out = append(out, res)
	}
	return out, nil
}

func isPrecondition(err error) bool {
	return apperrors.HTTPStatusCode(err) == 409
}

// Search runs one query through the full pipeline.
func (s *Service) Search(ctx context.Context, q Query, opts Options) (QueryResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dict == nil {
		return QueryResults{}, apperrors.ErrDictionaryNotLoaded
	}

	res := QueryResults{ID: q.ID, Query: q.Text, Results: []Result{}}

	terms := s.tok.Tokenize(q.Text)
	if len(terms) == 0 {
		// Stop words and punctuation only: a legitimate empty result.
		s.countQuery("zero_result")
		return res, nil
	}

	cands, queryDFs, semTerms, semDFs, headerTerms, err := s.gather(terms, opts.Semantic)
	if err != nil {
		s.countQuery("error")
		return QueryResults{}, err
	}
	if len(cands) == 0 {
		s.countQuery("zero_result")
		return res, nil
	}
	res.Candidates = len(cands)
	if s.metrics != nil {
		s.metrics.SearchCandidates.Observe(float64(len(cands)))
	}

	scores, err := s.scoreAll(ctx, cands, queryDFs, semTerms, semDFs, headerTerms, opts.Semantic)
	if err != nil {
		s.countQuery("error")
		return QueryResults{}, err
	}

	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	// Stable: ties keep candidate discovery order.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if opts.Limit > 0 && len(order) > opts.Limit {
		order = order[:opts.Limit]
	}

	for _, idx := range order {
		r := Result{DocNo: cands[idx].docNo, Score: scores[idx]}
		s.resolveMetadata(ctx, &r, opts.Entities)
		res.Results = append(res.Results, r)
	}
	s.countQuery("ranked")
	if s.metrics != nil {
		s.metrics.SearchResultsCount.Observe(float64(len(res.Results)))
	}

	s.logger.Info("query executed",
		"query_id", q.ID,
		"terms", len(terms),
		"candidates", len(cands),
		"returned", len(res.Results),
		"semantic", opts.Semantic,
	)
	return res, nil
}

// candidate accumulates the per-document term frequencies during gathering.
// Slices are parallel to the resolved query / semantic term lists.
type candidate struct {
	docNo    string
	queryTFs []int
	semTFs   []int
}

// gather resolves query terms against the dictionary, unions candidate
// documents from their postings, and (when expansion is on) does the same
// for the neighbor terms, keeping their statistics separate. Terms absent
// from the dictionary contribute nothing; a postings read failure is logged
// and that term contributes nothing either.
func (s *Service) gather(terms []tokenizer.Term, expand bool) (
	cands []*candidate,
	queryDFs []int,
	semTerms []string,
	semDFs []int,
	headerTerms []string,
	err error,
) {
	headerTerms = make([]string, 0, len(terms))
	for _, t := range terms {
		headerTerms = append(headerTerms, t.Unstemmed)
	}

	type resolved struct {
		text string
		df   int
	}
	present := make([]resolved, 0, len(terms))
	for _, t := range terms {
		entry, ok := s.dict.Lookup(t.Text)
		if !ok {
			continue
		}
		present = append(present, resolved{text: t.Text, df: int(entry.DocFreq)})
	}
	queryDFs = make([]int, len(present))
	for i, p := range present {
		queryDFs[i] = p.df
	}

	byDoc := make(map[string]*candidate)
	for i, p := range present {
		pl, perr := s.dict.Postings(p.text)
		if perr != nil {
			s.logger.Error("postings read failed, term contributes nothing",
				"term", p.text,
				"error", perr,
			)
			continue
		}
		for _, posting := range pl {
			c, ok := byDoc[posting.DocNo]
			if !ok {
				c = &candidate{
					docNo:    posting.DocNo,
					queryTFs: make([]int, len(present)),
				}
				byDoc[posting.DocNo] = c
				cands = append(cands, c)
			}
			c.queryTFs[i] = posting.TermFreq
		}
	}

	if !expand {
		return cands, queryDFs, nil, nil, headerTerms, nil
	}
	if s.expander == nil {
		s.logger.Warn("semantic expansion requested but no expander configured")
		return cands, queryDFs, nil, nil, headerTerms, nil
	}

	seen := make(map[string]struct{}, len(present))
	for _, p := range present {
		seen[p.text] = struct{}{}
	}
	type neighbor struct {
		text string
		df   int
	}
	var neighbors []neighbor
	for _, t := range terms {
		for _, n := range s.expander.Neighbors(t.Text) {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			entry, ok := s.dict.Lookup(n)
			if !ok {
				continue
			}
			neighbors = append(neighbors, neighbor{text: n, df: int(entry.DocFreq)})
		}
	}
	semTerms = make([]string, len(neighbors))
	semDFs = make([]int, len(neighbors))
	for i, n := range neighbors {
		semTerms[i] = n.text
		semDFs[i] = n.df
	}

	for i, n := range neighbors {
		pl, perr := s.dict.Postings(n.text)
		if perr != nil {
			s.logger.Error("postings read failed for neighbor term",
				"term", n.text,
				"error", perr,
			)
			continue
		}
		for _, posting := range pl {
			c, ok := byDoc[posting.DocNo]
			if !ok {
				c = &candidate{
					docNo:    posting.DocNo,
					queryTFs: make([]int, len(present)),
				}
				byDoc[posting.DocNo] = c
				cands = append(cands, c)
			}
			if c.semTFs == nil {
				c.semTFs = make([]int, len(neighbors))
			}
			c.semTFs[i] = posting.TermFreq
		}
	}
	return cands, queryDFs, semTerms, semDFs, headerTerms, nil
}

// scoreAll ranks every candidate concurrently. Each scoring call is
// independent; results land in per-candidate slots so ordering is
// deterministic regardless of scheduling.
func (s *Service) scoreAll(
	ctx context.Context,
	cands []*candidate,
	queryDFs []int,
	semTerms []string,
	semDFs []int,
	headerTerms []string,
	semantic bool,
) ([]float64, error) {
	rnk := ranker.New(s.ranking, semantic)
	scores := make([]float64, len(cands))
	zeroSem := make([]int, len(semTerms))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.scoringConcurrency)
	for i, c := range cands {
		i, c := i, c
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		g.Go(func() error {
			stats, _ := s.dict.DocStats(c.docNo)
			header := make(map[string]struct{}, len(stats.HeaderTerms))
			for _, h := range stats.HeaderTerms {
				header[h] = struct{}{}
			}
			semTFs := c.semTFs
			if semTFs == nil {
				semTFs = zeroSem
			}
			scores[i] = rnk.Score(ranker.DocRankData{
				QueryTerms:    headerTerms,
				QueryTFs:      c.queryTFs,
				QueryDFs:      queryDFs,
				SemanticTerms: semTerms,
				SemanticTFs:   semTFs,
				SemanticDFs:   semDFs,
				DocLength:     stats.Length,
				HeaderTerms:   header,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// resolveMetadata fills in date and entities from the document store. A
// missing record or store failure leaves the metadata empty; ranking results
// stand on their own.
func (s *Service) resolveMetadata(ctx context.Context, r *Result, entities bool) {
	if s.store == nil {
		return
	}
	rec, err := s.store.Lookup(ctx, r.DocNo)
	if err != nil {
		s.logger.Warn("metadata resolution failed",
			"doc_no", r.DocNo,
			"error", err,
		)
		return
	}
	r.Date = rec.Date
	if entities {
		r.Entities = rec.Entities
	}
}

func (s *Service) countQuery(resultType string) {
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

// Reload swaps in the persisted dictionary variant selected by mode,
// rebuilding the tokenizer to match so the pair cannot diverge.
func (s *Service) Reload(mode index.Mode) error {
	dict, err := index.Load(s.dataDir, mode)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dict != nil {
		s.dict.Close()
	}
	s.dict = dict
	s.tok = tokenizer.New(mode, s.stopWords)
	s.logger.Info("dictionary variant active", "variant", mode.String())
	return nil
}

// Reset clears the in-memory dictionary and deletes the persisted index
// files. It waits for in-flight queries to drain; subsequent searches fail
// with ErrDictionaryNotLoaded until a rebuild or Reload.
func (s *Service) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dict != nil {
		s.dict.Close()
		s.dict = nil
	}
	return index.Reset(s.dataDir)
}

// Close releases the dictionary handle.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dict != nil {
		err := s.dict.Close()
		s.dict = nil
		return err
	}
	return nil
}
