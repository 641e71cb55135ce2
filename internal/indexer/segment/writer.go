// Package segment reads and writes immutable on-disk index segments.
//
// Layout of a .prfs file:
//
//	header (64 bytes) | postings blocks | dictionary | document table | footer (32 bytes)
//
// Each postings block is a zstd-compressed CBOR posting list. The dictionary
// and document table are CBOR arrays; the footer carries CRC32 checksums of
// both.
package segment

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x50524653 // "PRFS"
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".prfs"
)

// Header is the fixed-size preamble of every segment.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
	DocsOffset int64
}

// DictEntry locates a term's postings block and carries its statistics.
type DictEntry struct {
	Term           string `cbor:"t"`
	PostOffset     int64  `cbor:"o"`
	PostLen        int    `cbor:"l"`
	DocFreq        int    `cbor:"d"`
	CollectionFreq int64  `cbor:"c"`
}

// Writer creates new segment files in a directory.
type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write creates a segment holding entries and docs. The file is written
// under a .tmp name and renamed into place once synced, so readers never
// observe a partial segment.
func (w *Writer) Write(entries []index.TermEntry, docs []index.Document) (string, error) {
	if len(entries) == 0 && len(docs) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	now := time.Now()
	segmentName := fmt.Sprintf("seg_%020d%s", now.UnixNano(), FileExt)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriter(f)
	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(entries)),
		DocCount:   uint32(len(docs)),
		CreatedAt:  now.Unix(),
		PostOffset: int64(HeaderSize),
	}
	if _, err := bw.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header placeholder: %w", err)
	}

	dict := make([]DictEntry, 0, len(entries))
	var postSize int64
	for _, entry := range entries {
		block, err := compressBlock(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("encoding postings for term %q: %w", entry.Term, err)
		}
		if _, err := bw.Write(block); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:           entry.Term,
			PostOffset:     postSize,
			PostLen:        len(block),
			DocFreq:        len(entry.Postings),
			CollectionFreq: entry.CollectionFrequency(),
		})
		postSize += int64(len(block))
	}
	header.PostSize = postSize

	dictData, err := marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.PostOffset + postSize
	header.DictSize = int64(len(dictData))
	if _, err := bw.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}

	docsData, err := marshal(docs)
	if err != nil {
		return "", fmt.Errorf("marshaling document table: %w", err)
	}
	header.DocsOffset = header.DictOffset + header.DictSize
	if _, err := bw.Write(docsData); err != nil {
		return "", fmt.Errorf("writing document table: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(docsData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(docsData)))
	binary.LittleEndian.PutUint32(footer[28:32], MagicBytes)
	if _, err := bw.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flushing segment file: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

func encodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DocsOffset))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[16:24])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[24:32])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[32:40])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[40:48])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[48:56])),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}
