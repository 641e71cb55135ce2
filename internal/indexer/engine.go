// Package indexer owns the document index: an in-memory write buffer that is
// periodically flushed into immutable segments, plus the collection
// statistics (document lengths, collection frequencies, total length) that
// the query-likelihood models score against.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/metrics"
)

// Engine merges the memory index and the on-disk segments into one view.
type Engine struct {
	cfg     config.IndexerConfig
	writer  *segment.Writer
	logger  *slog.Logger
	metrics *metrics.Metrics

	// flushMu serialises Flush and ReloadSegments.
	flushMu sync.Mutex

	readerMu sync.RWMutex
	readers  []*segment.Reader
	loaded   map[string]struct{}

	statsMu        sync.RWMutex
	memIndex       *index.MemoryIndex
	frozen         *index.MemoryIndex
	docs           map[int]index.Document
	byDisplay      map[string]int
	collectionFreq map[string]int64
	totalLength    int64
	nextID         int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records indexing and flush metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine opens the index stored in cfg.DataDir, loading every segment
// already present.
func NewEngine(cfg config.IndexerConfig, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		cfg:            cfg,
		writer:         segment.NewWriter(cfg.DataDir),
		logger:         slog.Default().With("component", "indexer"),
		loaded:         make(map[string]struct{}),
		memIndex:       index.NewMemoryIndex(),
		docs:           make(map[int]index.Document),
		byDisplay:      make(map[string]int),
		collectionFreq: make(map[string]int64),
		nextID:         1,
	}
	for _, opt := range opts {
		opt(e)
	}
	n, err := e.ReloadSegments()
	if err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", n, "documents", e.DocCount())
	return e, nil
}

// IndexDocument adds a document and returns its row in the document table.
// Display ids are unique across the index.
func (e *Engine) IndexDocument(displayID, title, body string) (index.Document, error) {
	if strings.TrimSpace(displayID) == "" {
		return index.Document{}, apperrors.Invalid("document id is required")
	}

	e.statsMu.Lock()
	if _, exists := e.byDisplay[displayID]; exists {
		e.statsMu.Unlock()
		return index.Document{}, fmt.Errorf("indexing %q: %w", displayID, apperrors.ErrDocumentExists)
	}
	id := e.nextID
	e.nextID++
	doc, counts := e.memIndex.AddDocument(id, displayID, title, body)
	e.docs[id] = doc
	e.byDisplay[displayID] = id
	e.totalLength += doc.Length
	for term, tf := range counts {
		e.collectionFreq[term] += tf
	}
	memSize := e.memIndex.Size()
	e.statsMu.Unlock()

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document indexed in memory",
		"doc_id", id,
		"display_id", displayID,
		"length", doc.Length,
		"mem_size", memSize,
	)
	if memSize >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", memSize,
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return doc, fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return doc, nil
}

// Flush writes the memory index to a new segment. The flushed documents stay
// searchable throughout: the buffer is frozen, written, and only released
// once the new segment reader is in place. A failed write keeps the frozen
// buffer for the next attempt.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.statsMu.Lock()
	if e.frozen == nil {
		if e.memIndex.DocCount() == 0 {
			e.statsMu.Unlock()
			return nil
		}
		e.frozen = e.memIndex
		e.memIndex = index.NewMemoryIndex()
	}
	frozen := e.frozen
	e.statsMu.Unlock()

	segmentName, err := e.writer.Write(frozen.Entries(), frozen.Documents())
	if err != nil {
		e.recordFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, segmentName))
	if err != nil {
		e.recordFlush("error")
		return fmt.Errorf("opening new segment for reading: %w", err)
	}

	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.loaded[segmentName] = struct{}{}
	active := len(e.readers)
	e.readerMu.Unlock()

	e.statsMu.Lock()
	e.frozen = nil
	e.statsMu.Unlock()

	e.recordFlush("ok")
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"active_segments", active,
	)
	return nil
}

func (e *Engine) recordFlush(status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		e.metrics.IndexSegments.Set(float64(e.SegmentCount()))
	}
}

// ReloadSegments opens segment files in the data directory that are not yet
// loaded and folds their documents into the collection statistics. It
// returns the number of segments added. Unreadable segments are logged and
// skipped.
func (e *Engine) ReloadSegments() (int, error) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading data directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	e.readerMu.RLock()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != segment.FileExt {
			continue
		}
		if _, ok := e.loaded[name]; !ok {
			names = append(names, name)
		}
	}
	e.readerMu.RUnlock()
	sort.Strings(names)

	added := 0
	for _, name := range names {
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.register(reader)
		e.readerMu.Lock()
		e.readers = append(e.readers, reader)
		e.loaded[name] = struct{}{}
		e.readerMu.Unlock()
		added++
		e.logger.Info("loaded segment",
			"segment", name,
			"terms", reader.Terms(),
			"docs", reader.DocCount(),
		)
	}
	if added > 0 && e.metrics != nil {
		e.metrics.IndexSegments.Set(float64(e.SegmentCount()))
	}
	return added, nil
}

func (e *Engine) register(reader *segment.Reader) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	fresh := false
	for _, doc := range reader.Documents() {
		if _, known := e.docs[doc.ID]; known {
			continue
		}
		fresh = true
		if prev, dup := e.byDisplay[doc.DisplayID]; dup {
			e.logger.Warn("display id appears in more than one document",
				"display_id", doc.DisplayID,
				"doc_id", doc.ID,
				"previous_doc_id", prev,
			)
		}
		e.docs[doc.ID] = doc
		e.byDisplay[doc.DisplayID] = doc.ID
		e.totalLength += doc.Length
		if doc.ID >= e.nextID {
			e.nextID = doc.ID + 1
		}
	}
	if !fresh {
		return
	}
	for _, entry := range reader.Dictionary() {
		e.collectionFreq[entry.Term] += entry.CollectionFreq
	}
}

// Postings returns the merged posting list of an already-normalised term,
// sorted by document id. Segment read failures are returned, not skipped.
func (e *Engine) Postings(term string) (index.PostingList, error) {
	e.statsMu.RLock()
	all := e.memIndex.Search(term)
	if e.frozen != nil {
		all = append(all, e.frozen.Search(term)...)
	}
	e.statsMu.RUnlock()

	e.readerMu.RLock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	e.readerMu.RUnlock()

	for _, reader := range readers {
		postings, err := reader.Search(term)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", reader.Name(), err)
		}
		all = append(all, postings...)
	}
	return mergePostings(all), nil
}

// CollectionFrequency is the total number of occurrences of term in the
// collection.
func (e *Engine) CollectionFrequency(term string) (int64, error) {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.collectionFreq[term], nil
}

// DocLength is the token count of the document with internal id docID.
func (e *Engine) DocLength(docID int) (int64, error) {
	doc, err := e.document(docID)
	if err != nil {
		return 0, err
	}
	return doc.Length, nil
}

// DisplayID maps an internal id to the caller-visible document id.
func (e *Engine) DisplayID(docID int) (string, error) {
	doc, err := e.document(docID)
	if err != nil {
		return "", err
	}
	return doc.DisplayID, nil
}

// TotalLength is the sum of all document lengths.
func (e *Engine) TotalLength() (int64, error) {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.totalLength, nil
}

func (e *Engine) document(docID int) (index.Document, error) {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	doc, ok := e.docs[docID]
	if !ok {
		return index.Document{}, fmt.Errorf("doc %d: %w", docID, apperrors.ErrDocumentNotFound)
	}
	return doc, nil
}

func (e *Engine) DocCount() int {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return len(e.docs)
}

func (e *Engine) SegmentCount() int {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	return len(e.readers)
}

// StartFlushLoop flushes the memory index every FlushInterval until ctx is
// cancelled, then performs a final flush.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// Close flushes pending documents and closes every segment reader.
func (e *Engine) Close() error {
	flushErr := e.Flush()
	if flushErr != nil {
		e.logger.Error("final flush on close failed", "error", flushErr)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return flushErr
}

// mergePostings sorts by document id and drops repeats, which occur while a
// flushed buffer and its new segment are briefly both visible.
func mergePostings(postings index.PostingList) index.PostingList {
	if len(postings) <= 1 {
		return postings
	}
	sort.SliceStable(postings, func(i, j int) bool {
		return postings[i].DocID < postings[j].DocID
	})
	result := postings[:1]
	for _, p := range postings[1:] {
		if p.DocID != result[len(result)-1].DocID {
			result = append(result, p)
		}
	}
	return result
}
