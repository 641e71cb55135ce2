package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
)

// Reader serves lookups from one segment file. The dictionary and document
// table are held in memory; postings blocks are read on demand.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []DictEntry
	docs     []index.Document
}

// OpenReader opens and validates the segment at path.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("invalid segment file %s: too short (%d bytes)", filepath.Base(path), info.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, info.Size()-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	dictCRC := binary.LittleEndian.Uint32(footer[0:4])
	docsCRC := binary.LittleEndian.Uint32(footer[4:8])
	docsSize := int64(binary.LittleEndian.Uint64(footer[8:16]))

	bodyEnd := info.Size() - int64(FooterSize)
	if err := checkRegion("postings", header.PostOffset, header.PostSize, bodyEnd); err != nil {
		return nil, fmt.Errorf("invalid segment file %s: %w", filepath.Base(path), err)
	}
	if err := checkRegion("dictionary", header.DictOffset, header.DictSize, bodyEnd); err != nil {
		return nil, fmt.Errorf("invalid segment file %s: %w", filepath.Base(path), err)
	}
	if err := checkRegion("document table", header.DocsOffset, docsSize, bodyEnd); err != nil {
		return nil, fmt.Errorf("invalid segment file %s: %w", filepath.Base(path), err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != dictCRC {
		return nil, fmt.Errorf("dictionary checksum mismatch in %s", filepath.Base(path))
	}
	var dict []DictEntry
	if err := unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	for _, e := range dict {
		if err := checkRegion("postings for "+e.Term, e.PostOffset, int64(e.PostLen), header.PostSize); err != nil {
			return nil, fmt.Errorf("invalid segment file %s: %w", filepath.Base(path), err)
		}
	}

	docsBytes := make([]byte, docsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading document table: %w", err)
	}
	if crc32.ChecksumIEEE(docsBytes) != docsCRC {
		return nil, fmt.Errorf("document table checksum mismatch in %s", filepath.Base(path))
	}
	var docs []index.Document
	if err := unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing document table: %w", err)
	}

	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		docs:     docs,
	}, nil
}

// Search returns the postings of term, or nil when the segment does not
// contain it.
func (r *Reader) Search(term string) (index.PostingList, error) {
	entry, ok := r.lookup(term)
	if !ok {
		return nil, nil
	}
	if err := checkRegion("postings", entry.PostOffset, int64(entry.PostLen), r.header.PostSize); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", term, err)
	}
	block := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(block, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", term, err)
	}
	var postings index.PostingList
	if err := decompressBlock(block, &postings); err != nil {
		return nil, fmt.Errorf("decoding postings for %q: %w", term, err)
	}
	return postings, nil
}

// checkRegion fails unless [offset, offset+size) lies within [0, limit).
func checkRegion(name string, offset, size, limit int64) error {
	if offset < 0 || size < 0 || offset > limit || size > limit-offset {
		return fmt.Errorf("%s region [%d,+%d) outside file body of %d bytes", name, offset, size, limit)
	}
	return nil
}

func (r *Reader) lookup(term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

// Dictionary returns the term dictionary sorted by term. Callers must not
// modify it.
func (r *Reader) Dictionary() []DictEntry {
	return r.dict
}

// Documents returns the document table. Callers must not modify it.
func (r *Reader) Documents() []index.Document {
	return r.docs
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

// Name is the segment's file name.
func (r *Reader) Name() string {
	return filepath.Base(r.filePath)
}

func (r *Reader) Close() error {
	return r.file.Close()
}
