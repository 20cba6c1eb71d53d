// Package index implements the on-disk dictionary and postings structure.
// The indexer builds two independent variants side by side, one over stemmed
// terms and one over raw terms; a loaded Dictionary handle always knows which
// variant it is, so query paths cannot mix a stemming flag with the wrong
// table.
package index

// Mode selects the dictionary variant.
type Mode int

const (
	Unstemmed Mode = iota
	Stemmed
)

func (m Mode) String() string {
	if m == Stemmed {
		return "stemmed"
	}
	return "unstemmed"
}

// FileName returns the on-disk file name for this variant.
func (m Mode) FileName() string {
	if m == Stemmed {
		return "dictionary_stem.sidx"
	}
	return "dictionary.sidx"
}

// Entry is the per-term dictionary record: aggregate counts plus a pointer
// into the postings region.
type Entry struct {
	TotalCount     uint64
	DocFreq        uint32
	PostingsOffset int64
	PostingsLen    int
}

// Posting is the per-(term, document) record read on demand at query time.
type Posting struct {
	DocNo    string `json:"d"`
	TermFreq int    `json:"f"`
	InHeader bool   `json:"h,omitempty"`
}

// PostingList holds all postings of one term, contiguous on disk.
type PostingList []Posting

// DocStats carries the per-document data the ranker needs: document length
// and the raw (never stemmed) header terms.
type DocStats struct {
	Length      int      `json:"l"`
	HeaderTerms []string `json:"h,omitempty"`
}

// TermOccurrence is one (term, count, header-flag) tuple of a tokenized
// document, as produced by the parsing front end.
type TermOccurrence struct {
	Term     string `json:"t"`
	Count    int    `json:"c"`
	InHeader bool   `json:"h,omitempty"`
}

// DocumentTokens is the unit the index builder consumes: one fully tokenized
// document. HeaderTerms are the unstemmed header tokens regardless of the
// variant being built.
type DocumentTokens struct {
	DocNo       string           `json:"doc_no"`
	Length      int              `json:"length"`
	HeaderTerms []string         `json:"header_terms,omitempty"`
	Occurrences []TermOccurrence `json:"occurrences"`
}
