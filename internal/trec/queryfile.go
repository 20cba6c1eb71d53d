// Package trec reads TREC topic files and writes TREC-format result files
// for batch evaluation runs.
package trec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Topic is one query from a TREC topics file.
type Topic struct {
	ID   string
	Text string
}

// ParseQueryFile reads a TREC topics file and returns its topics in file
// order. Each topic is a <top> block; the id comes from the "<num> Number:"
// line and the query text from the "<title>" line (which may wrap onto the
// following lines until the next tag).
func ParseQueryFile(path string) ([]Topic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()
	return ParseTopics(f)
}

// ParseTopics parses TREC topics from r.
func ParseTopics(r io.Reader) ([]Topic, error) {
	var (
		topics  []Topic
		current Topic
		inTitle bool
		open    bool
	)
	flush := func() {
		if open && current.ID != "" {
			current.Text = strings.TrimSpace(current.Text)
			topics = append(topics, current)
		}
		current = Topic{}
		open = false
		inTitle = false
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "<top>"):
			flush()
			open = true
		case strings.HasPrefix(line, "</top>"):
			flush()
		case strings.HasPrefix(line, "<num>"):
			inTitle = false
			rest := strings.TrimPrefix(line, "<num>")
			rest = strings.TrimSpace(rest)
			rest = strings.TrimPrefix(rest, "Number:")
			current.ID = strings.TrimSpace(rest)
		case strings.HasPrefix(line, "<title>"):
			current.Text = strings.TrimSpace(strings.TrimPrefix(line, "<title>"))
			inTitle = true
		case strings.HasPrefix(line, "<"):
			// Any other tag (<desc>, <narr>, ...) ends the title block.
			inTitle = false
		case inTitle && line != "":
			current.Text += " " + line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	flush()
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics found in query file")
	}
	return topics, nil
}
