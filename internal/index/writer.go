package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
)

// On-disk layout of a .sidx dictionary file:
//
//	header | postings region | dictionary table | doc-stats table | footer
//
// Postings for one term are contiguous, addressed by (offset, length) from
// the dictionary table, so a term lookup costs one seek plus one sequential
// read. The dictionary and doc-stats tables are loaded wholesale at open.
const (
	magicBytes    uint32 = 0x53454958 // "SEIX"
	formatVersion uint32 = 1
	headerSize    int    = 64
	footerSize    int    = 32
)

type fileHeader struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	DocCount    uint32
	Mode        uint32
	PostOffset  int64
	PostSize    int64
	DictOffset  int64
	DictSize    int64
	StatsOffset int64
}

// diskEntry is the JSON form of one dictionary row. Offsets are relative to
// the start of the postings region.
type diskEntry struct {
	Term       string `json:"t"`
	TotalCount uint64 `json:"c"`
	DocFreq    uint32 `json:"d"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
}

type termEntry struct {
	term       string
	totalCount uint64
	postings   PostingList
}

// Writer serialises a finalized in-memory index into a new .sidx file.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes dictionary files into dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates the dictionary file for the given variant. It
// writes to a .tmp file first and renames on success.
func (w *Writer) Write(mode Mode, entries []termEntry, stats map[string]DocStats) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty dictionary")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].term < entries[j].term
	})

	finalPath := filepath.Join(w.dataDir, mode.FileName())
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating index directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp dictionary file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, headerSize)
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header placeholder: %w", err)
	}

	// Postings region: each term's postings JSON-encoded back to back.
	postStart := int64(headerSize)
	offset := postStart
	dict := make([]diskEntry, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry.postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.term, err)
		}
		if _, err := f.Write(data); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.term, err)
		}
		dict = append(dict, diskEntry{
			Term:       entry.term,
			TotalCount: entry.totalCount,
			DocFreq:    uint32(len(entry.postings)),
			PostOffset: offset - postStart,
			PostLen:    len(data),
		})
		offset += int64(len(data))
	}
	postSize := offset - postStart

	dictStart := offset
	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary table: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary table: %w", err)
	}

	statsStart := dictStart + int64(len(dictData))
	statsData, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("marshaling doc stats: %w", err)
	}
	if _, err := f.Write(statsData); err != nil {
		return "", fmt.Errorf("writing doc stats: %w", err)
	}

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(statsData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(statsData)))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	header := fileHeader{
		Magic:       magicBytes,
		Version:     formatVersion,
		TermCount:   uint32(len(entries)),
		DocCount:    uint32(len(stats)),
		Mode:        uint32(mode),
		PostOffset:  postStart,
		PostSize:    postSize,
		DictOffset:  dictStart,
		DictSize:    int64(len(dictData)),
		StatsOffset: statsStart,
	}
	encodeHeader(headerBytes, header)
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing dictionary file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming dictionary file: %w", err)
	}
	return finalPath, nil
}

func encodeHeader(buf []byte, h fileHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.Mode)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.StatsOffset))
}

func decodeHeader(buf []byte) fileHeader {
	return fileHeader{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:   binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:    binary.LittleEndian.Uint32(buf[12:16]),
		Mode:        binary.LittleEndian.Uint32(buf[16:20]),
		PostOffset:  int64(binary.LittleEndian.Uint64(buf[24:32])),
		PostSize:    int64(binary.LittleEndian.Uint64(buf[32:40])),
		DictOffset:  int64(binary.LittleEndian.Uint64(buf[40:48])),
		DictSize:    int64(binary.LittleEndian.Uint64(buf[48:56])),
		StatsOffset: int64(binary.LittleEndian.Uint64(buf[56:64])),
	}
}
