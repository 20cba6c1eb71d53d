// Package docstore implements the partitioned document store: a fixed number
// of text files, one semicolon-delimited record per document, looked up by
// concurrently scanning every partition. Partition assignment is decided at
// index-build time and is not derivable from a docNo at query time, which is
// why a lookup fans out across all partitions.
package docstore

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/talfrim/searchengine/pkg/errors"
)

// ctxCheckInterval is how many lines a partition scan reads between context
// cancellation checks.
const ctxCheckInterval = 512

// Record is one parsed document-store line.
type Record struct {
	DocNo    string
	Date     string
	Entities string
	Raw      string
}

// ParseRecord splits a partition line into a Record. Field 0 is the docNo,
// field 1 the date, and the last field the entities blob; everything else is
// intermediate document data kept only in Raw.
func ParseRecord(line string) Record {
	fields := strings.Split(line, ";")
	rec := Record{DocNo: fields[0], Raw: line}
	if len(fields) > 1 {
		rec.Date = fields[1]
	}
	if len(fields) > 2 {
		rec.Entities = fields[len(fields)-1]
	}
	return rec
}

// Store reads document records from N partition files, optionally preloading
// the whole corpus into memory. A Store is read-only after Open; concurrent
// lookups need no locking.
type Store struct {
	dir        string
	partitions int
	preloaded  map[string]Record
	logger     *slog.Logger
}

// Open creates a Store over dir with the configured partition count. With
// preload set, every partition is read once up front and lookups become map
// hits; the mapping is identical to the scan path.
func Open(dir string, partitions int, preload bool) (*Store, error) {
	if partitions <= 0 {
		return nil, fmt.Errorf("document store needs a positive partition count, got %d", partitions)
	}
	s := &Store{
		dir:        dir,
		partitions: partitions,
		logger:     slog.Default().With("component", "docstore"),
	}
	if preload {
		table, err := s.loadAll()
		if err != nil {
			return nil, fmt.Errorf("preloading document store: %w", err)
		}
		s.preloaded = table
		s.logger.Info("document store preloaded", "docs", len(table), "partitions", partitions)
	}
	return s, nil
}

// Partitions returns the configured partition count.
func (s *Store) Partitions() int {
	return s.partitions
}

// partitionPath returns the file path of partition i.
func (s *Store) partitionPath(i int) string {
	return filepath.Join(s.dir, fmt.Sprintf("docFile%d", i))
}

// Lookup returns the record for docNo. It scans all partitions concurrently
// and adopts the single hit; ErrDocumentNotFound is returned only after
// every partition has finished without a match. Per-partition read errors
// are logged and treated as no-match in that partition.
func (s *Store) Lookup(ctx context.Context, docNo string) (Record, error) {
	if docNo == "" {
		return Record{}, fmt.Errorf("%w: empty document number", apperrors.ErrInvalidInput)
	}
	if s.preloaded != nil {
		rec, ok := s.preloaded[docNo]
		if !ok {
			return Record{}, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, docNo)
		}
		return rec, nil
	}
	return s.scanAll(ctx, docNo)
}

// scanAll fans out one goroutine per partition, joins them all, and takes
// the single non-empty result. More than one hit means the uniqueness
// invariant is broken; it is logged as an integrity warning and the hit
// from the lowest-numbered partition wins, deterministically.
func (s *Store) scanAll(ctx context.Context, docNo string) (Record, error) {
	results := make([]*Record, s.partitions)
	var g errgroup.Group
	for i := 0; i < s.partitions; i++ {
		i := i
		g.Go(func() error {
			rec, err := s.scanPartition(ctx, i, docNo)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				s.logger.Error("partition scan failed, treating as no match",
					"partition", i,
					"doc_no", docNo,
					"error", err,
				)
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Record{}, fmt.Errorf("document lookup cancelled: %w", err)
	}

	var found *Record
	for i, rec := range results {
		if rec == nil {
			continue
		}
		if found != nil {
			s.logger.Warn("integrity violation: docNo matched in multiple partitions",
				"doc_no", docNo,
				"extra_partition", i,
			)
			continue
		}
		found = rec
	}
	if found == nil {
		return Record{}, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, docNo)
	}
	return *found, nil
}

// scanPartition reads partition i line by line and returns the record whose
// first field equals docNo, or nil when the partition is exhausted.
func (s *Store) scanPartition(ctx context.Context, partition int, docNo string) (*Record, error) {
	f, err := os.Open(s.partitionPath(partition))
	if err != nil {
		return nil, fmt.Errorf("opening partition %d: %w", partition, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lines := 0
	for scanner.Scan() {
		lines++
		if lines%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		line := scanner.Text()
		end := strings.IndexByte(line, ';')
		if end < 0 {
			end = len(line)
		}
		if line[:end] == docNo {
			rec := ParseRecord(line)
			return &rec, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning partition %d: %w", partition, err)
	}
	return nil, nil
}

// loadAll materializes every partition into one docNo-keyed table.
func (s *Store) loadAll() (map[string]Record, error) {
	table := make(map[string]Record)
	for i := 0; i < s.partitions; i++ {
		f, err := os.Open(s.partitionPath(i))
		if err != nil {
			if os.IsNotExist(err) {
				s.logger.Warn("partition file missing, skipping", "partition", i)
				continue
			}
			return nil, fmt.Errorf("opening partition %d: %w", i, err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			rec := ParseRecord(scanner.Text())
			if prev, dup := table[rec.DocNo]; dup {
				s.logger.Warn("integrity violation: duplicate docNo across partitions",
					"doc_no", rec.DocNo,
					"kept", prev.DocNo,
				)
				continue
			}
			table[rec.DocNo] = rec
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading partition %d: %w", i, err)
		}
	}
	return table, nil
}
