// Package tokenizer normalizes free-text queries into index terms. It
// lower-cases, splits on non-alphanumeric boundaries, drops stop words, and
// applies the snowball English stemmer when targeting the stemmed dictionary
// variant. The unstemmed form of every surviving term is retained because
// the header-match score always compares raw terms.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/talfrim/searchengine/internal/index"
)

// Term is one normalized query token. Text is the index form (stemmed when
// the tokenizer targets the stemmed variant); Unstemmed is always the raw
// lowercased form.
type Term struct {
	Text      string
	Unstemmed string
}

// Tokenizer converts raw query strings into Terms for one dictionary variant.
type Tokenizer struct {
	mode  index.Mode
	stops map[string]struct{}
}

// New creates a Tokenizer targeting the given variant with the given stop
// words (already lowercased).
func New(mode index.Mode, stopWords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{mode: mode, stops: stops}
}

// Mode reports which dictionary variant this tokenizer produces terms for.
func (t *Tokenizer) Mode() index.Mode {
	return t.mode
}

// Tokenize normalizes a raw query. A query of nothing but stop words and
// punctuation yields an empty slice.
func (t *Tokenizer) Tokenize(query string) []Term {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]Term, 0, len(words))
	for _, word := range words {
		if _, isStop := t.stops[word]; isStop {
			continue
		}
		text := word
		if t.mode == index.Stemmed {
			text = english.Stem(word, true)
		}
		if text == "" {
			continue
		}
		terms = append(terms, Term{Text: text, Unstemmed: word})
	}
	return terms
}
