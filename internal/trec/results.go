package trec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/talfrim/searchengine/internal/search"
)

// WriteResultsFile writes the ranked results of a batch run to
// dir/results.txt, replacing any previous file.
func WriteResultsFile(dir string, results []search.QueryResults) error {
	path := filepath.Join(dir, "results.txt")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	if err := WriteResults(f, results); err != nil {
		return err
	}
	return f.Sync()
}

// WriteResults emits one line per (query, document) pair in the six-column
// evaluation format:
//
//	<queryID> 0 <docNo> 1 1.1 mt
//
// Results stay grouped by query in input order; a trailing space on the
// query id is stripped.
func WriteResults(w io.Writer, results []search.QueryResults) error {
	bw := bufio.NewWriter(w)
	for _, qr := range results {
		qid := qr.ID
		if n := len(qid); n > 0 && qid[n-1] == ' ' {
			qid = qid[:n-1]
		}
		for _, r := range qr.Results {
			if _, err := fmt.Fprintf(bw, "%s 0 %s 1 1.1 mt\n", qid, r.DocNo); err != nil {
				return fmt.Errorf("writing result line: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing results: %w", err)
	}
	return nil
}
