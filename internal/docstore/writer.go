package docstore

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Writer appends document records to the N partition files during an index
// build. Partition assignment is decided here, at build time, by ingest
// order; the query path never recomputes it and always scans all partitions.
type Writer struct {
	mu    sync.Mutex
	files []*os.File
	bufs  []*bufio.Writer
	next  int
}

// OpenWriter creates (truncating) the partition files under dir.
func OpenWriter(dir string, partitions int) (*Writer, error) {
	if partitions <= 0 {
		return nil, fmt.Errorf("document store needs a positive partition count, got %d", partitions)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating document store directory: %w", err)
	}
	w := &Writer{
		files: make([]*os.File, partitions),
		bufs:  make([]*bufio.Writer, partitions),
	}
	for i := 0; i < partitions; i++ {
		f, err := os.Create(fmt.Sprintf("%s/docFile%d", dir, i))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("creating partition %d: %w", i, err)
		}
		w.files[i] = f
		w.bufs[i] = bufio.NewWriter(f)
	}
	return w, nil
}

// Append writes one record (fields joined by semicolons, docNo first) to the
// next partition in round-robin order.
func (w *Writer) Append(fields []string) error {
	if len(fields) == 0 || fields[0] == "" {
		return fmt.Errorf("record needs a non-empty docNo field")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	buf := w.bufs[w.next]
	w.next = (w.next + 1) % len(w.bufs)
	if _, err := buf.WriteString(strings.Join(fields, ";")); err != nil {
		return fmt.Errorf("writing record %s: %w", fields[0], err)
	}
	if err := buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing record %s: %w", fields[0], err)
	}
	return nil
}

// Close flushes and closes every partition file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for i, buf := range w.bufs {
		if buf == nil {
			continue
		}
		if err := buf.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flushing partition %d: %w", i, err)
		}
	}
	for i, f := range w.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing partition %d: %w", i, err)
		}
	}
	return firstErr
}
