package index

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Builder accumulates the inverted index in memory from a tokenized corpus
// stream. The build is single-pass over the corpus; postings are buffered
// per term so that each term's postings land contiguous in the on-disk
// postings region when flushed.
type Builder struct {
	mu       sync.Mutex
	mode     Mode
	writer   *Writer
	postings map[string]PostingList
	totals   map[string]uint64
	stats    map[string]DocStats
	logger   *slog.Logger
}

// NewBuilder creates a Builder for one dictionary variant.
func NewBuilder(dataDir string, mode Mode) *Builder {
	return &Builder{
		mode:     mode,
		writer:   NewWriter(dataDir),
		postings: make(map[string]PostingList),
		totals:   make(map[string]uint64),
		stats:    make(map[string]DocStats),
		logger:   slog.Default().With("component", "index-builder", "variant", mode.String()),
	}
}

// Add consumes one tokenized document. Re-adding a docNo overwrites its
// stats but appends postings, so callers must feed each document once.
func (b *Builder) Add(doc DocumentTokens) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, occ := range doc.Occurrences {
		if occ.Count <= 0 {
			continue
		}
		b.postings[occ.Term] = append(b.postings[occ.Term], Posting{
			DocNo:    doc.DocNo,
			TermFreq: occ.Count,
			InHeader: occ.InHeader,
		})
		b.totals[occ.Term] += uint64(occ.Count)
	}
	b.stats[doc.DocNo] = DocStats{
		Length:      doc.Length,
		HeaderTerms: doc.HeaderTerms,
	}
}

// DocCount returns the number of documents consumed so far.
func (b *Builder) DocCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stats)
}

// TermCount returns the number of unique terms seen so far.
func (b *Builder) TermCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.postings)
}

// Flush persists the accumulated index as this variant's dictionary file and
// clears the in-memory state. Postings within a term are ordered by docNo
// for deterministic output.
func (b *Builder) Flush() (string, error) {
	b.mu.Lock()
	entries := make([]termEntry, 0, len(b.postings))
	for term, pl := range b.postings {
		sort.Slice(pl, func(i, j int) bool { return pl[i].DocNo < pl[j].DocNo })
		entries = append(entries, termEntry{
			term:       term,
			totalCount: b.totals[term],
			postings:   pl,
		})
	}
	stats := b.stats
	b.postings = make(map[string]PostingList)
	b.totals = make(map[string]uint64)
	b.stats = make(map[string]DocStats)
	b.mu.Unlock()

	if len(entries) == 0 {
		return "", fmt.Errorf("flush with no indexed documents")
	}
	path, err := b.writer.Write(b.mode, entries, stats)
	if err != nil {
		return "", fmt.Errorf("writing %s dictionary: %w", b.mode, err)
	}
	b.logger.Info("dictionary flushed",
		"path", path,
		"terms", len(entries),
		"docs", len(stats),
	)
	return path, nil
}
