package index

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "github.com/talfrim/searchengine/pkg/errors"
)

// Dictionary is a loaded read-only dictionary variant. The term table and
// doc stats live in memory; postings stay on disk and are read on demand at
// the pointer recorded in each Entry. A Dictionary is safe for concurrent
// readers; it is never mutated after Load.
type Dictionary struct {
	mode    Mode
	file    *os.File
	path    string
	header  fileHeader
	entries map[string]Entry
	stats   map[string]DocStats
}

// Load opens the persisted dictionary variant selected by mode. A file whose
// recorded variant disagrees with its name returns ErrVariantMismatch rather
// than silently serving the wrong table.
func Load(dataDir string, mode Mode) (*Dictionary, error) {
	path := filepath.Join(dataDir, mode.FileName())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDictionaryNotLoaded, path)
		}
		return nil, fmt.Errorf("opening dictionary file: %w", err)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != magicBytes {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic bytes %x in %s", apperrors.ErrIndexCorrupt, header.Magic, path)
	}
	if header.Version != formatVersion {
		f.Close()
		return nil, fmt.Errorf("%w: unsupported format version %d", apperrors.ErrIndexCorrupt, header.Version)
	}
	if Mode(header.Mode) != mode {
		f.Close()
		return nil, fmt.Errorf("%w: file %s records variant %s", apperrors.ErrVariantMismatch, path, Mode(header.Mode))
	}

	dictData := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictData, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary table: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat dictionary file: %w", err)
	}
	statsSize := info.Size() - header.StatsOffset - int64(footerSize)
	if statsSize < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: truncated doc-stats region", apperrors.ErrIndexCorrupt)
	}
	statsData := make([]byte, statsSize)
	if _, err := f.ReadAt(statsData, header.StatsOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading doc stats: %w", err)
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-int64(footerSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary footer: %w", err)
	}
	if err := verifyChecksums(footer, dictData, statsData); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var disk []diskEntry
	if err := json.Unmarshal(dictData, &disk); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: parsing dictionary table: %v", apperrors.ErrIndexCorrupt, err)
	}
	entries := make(map[string]Entry, len(disk))
	for _, de := range disk {
		entries[de.Term] = Entry{
			TotalCount:     de.TotalCount,
			DocFreq:        de.DocFreq,
			PostingsOffset: header.PostOffset + de.PostOffset,
			PostingsLen:    de.PostLen,
		}
	}

	stats := make(map[string]DocStats)
	if len(statsData) > 0 {
		if err := json.Unmarshal(statsData, &stats); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: parsing doc stats: %v", apperrors.ErrIndexCorrupt, err)
		}
	}

	slog.Default().With("component", "dictionary").Info("dictionary loaded",
		"path", path,
		"variant", mode.String(),
		"terms", len(entries),
		"docs", len(stats),
	)
	return &Dictionary{
		mode:    mode,
		file:    f,
		path:    path,
		header:  header,
		entries: entries,
		stats:   stats,
	}, nil
}

func verifyChecksums(footer, dictData, statsData []byte) error {
	wantDict := uint32(footer[0]) | uint32(footer[1])<<8 | uint32(footer[2])<<16 | uint32(footer[3])<<24
	wantStats := uint32(footer[4]) | uint32(footer[5])<<8 | uint32(footer[6])<<16 | uint32(footer[7])<<24
	if crc32.ChecksumIEEE(dictData) != wantDict {
		return fmt.Errorf("%w: dictionary table checksum mismatch", apperrors.ErrIndexCorrupt)
	}
	if crc32.ChecksumIEEE(statsData) != wantStats {
		return fmt.Errorf("%w: doc-stats checksum mismatch", apperrors.ErrIndexCorrupt)
	}
	return nil
}

// Mode reports which variant this handle holds.
func (d *Dictionary) Mode() Mode {
	return d.mode
}

// Lookup returns the dictionary entry for term. Absence is a legitimate
// empty result, never an error.
func (d *Dictionary) Lookup(term string) (Entry, bool) {
	e, ok := d.entries[term]
	return e, ok
}

// Postings reads the postings of term from disk: one ReadAt at the entry's
// pointer, then a JSON decode. A term absent from the dictionary yields
// (nil, nil).
func (d *Dictionary) Postings(term string) (PostingList, error) {
	entry, ok := d.entries[term]
	if !ok {
		return nil, nil
	}
	buf := make([]byte, entry.PostingsLen)
	if _, err := d.file.ReadAt(buf, entry.PostingsOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", term, err)
	}
	var pl PostingList
	if err := json.Unmarshal(buf, &pl); err != nil {
		return nil, fmt.Errorf("%w: parsing postings for %q: %v", apperrors.ErrIndexCorrupt, term, err)
	}
	return pl, nil
}

// DocStats returns the per-document stats recorded at build time.
func (d *Dictionary) DocStats(docNo string) (DocStats, bool) {
	s, ok := d.stats[docNo]
	return s, ok
}

// TermCount returns the number of terms in the loaded table.
func (d *Dictionary) TermCount() int {
	return len(d.entries)
}

// DocCount returns the number of documents the variant was built over.
func (d *Dictionary) DocCount() int {
	return len(d.stats)
}

// Close releases the underlying file handle.
func (d *Dictionary) Close() error {
	return d.file.Close()
}

// Reset deletes all persisted dictionary variants under dataDir. Callers
// must serialize Reset against in-flight queries; after a Reset, searches
// fail with ErrDictionaryNotLoaded until a rebuild or reload.
func Reset(dataDir string) error {
	for _, mode := range []Mode{Unstemmed, Stemmed} {
		path := filepath.Join(dataDir, mode.FileName())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	slog.Default().With("component", "dictionary").Info("index reset", "data_dir", dataDir)
	return nil
}
