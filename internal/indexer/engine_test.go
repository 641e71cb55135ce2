package indexer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.IndexerConfig {
	t.Helper()
	return config.IndexerConfig{
		DataDir:        t.TempDir(),
		SegmentMaxSize: 1 << 30,
		FlushInterval:  time.Hour,
	}
}

func TestIndexDocumentStats(t *testing.T) {
	e, err := NewEngine(testConfig(t))
	require.NoError(t, err)
	defer e.Close()

	d1, err := e.IndexDocument("doc-a", "Digital library", "library of digital books")
	require.NoError(t, err)
	d2, err := e.IndexDocument("doc-b", "Search", "searching the library")
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID, d2.ID)

	cf, err := e.CollectionFrequency("library")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cf)

	total, err := e.TotalLength()
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)

	length, err := e.DocLength(d1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), length)

	display, err := e.DisplayID(d2.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc-b", display)

	_, err = e.DocLength(999)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestIndexDocumentRejectsDuplicatesAndBlankIDs(t *testing.T) {
	e, err := NewEngine(testConfig(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.IndexDocument("doc-a", "one", "two")
	require.NoError(t, err)
	_, err = e.IndexDocument("doc-a", "three", "four")
	assert.ErrorIs(t, err, apperrors.ErrDocumentExists)
	_, err = e.IndexDocument("  ", "x", "y")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFlushKeepsDocumentsSearchable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	e, err := NewEngine(testConfig(t), WithMetrics(m))
	require.NoError(t, err)
	defer e.Close()

	d1, err := e.IndexDocument("doc-a", "Digital library", "library of digital books")
	require.NoError(t, err)
	require.NoError(t, e.Flush())
	d2, err := e.IndexDocument("doc-b", "Search", "searching the library")
	require.NoError(t, err)

	postings, err := e.Postings("library")
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, d1.ID, postings[0].DocID)
	assert.Equal(t, d2.ID, postings[1].DocID)

	assert.Equal(t, 1, e.SegmentCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexFlushesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DocsIndexedTotal))
}

func TestFlushEmptyIsNoop(t *testing.T) {
	e, err := NewEngine(testConfig(t))
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Flush())
	assert.Zero(t, e.SegmentCount())
}

func TestReopenRecoversStatistics(t *testing.T) {
	cfg := testConfig(t)
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	d1, err := e.IndexDocument("doc-a", "Digital library", "library of digital books")
	require.NoError(t, err)
	_, err = e.IndexDocument("doc-b", "Search", "searching the library")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopened, err := NewEngine(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.DocCount())
	cf, err := reopened.CollectionFrequency("library")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cf)
	total, err := reopened.TotalLength()
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	display, err := reopened.DisplayID(d1.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc-a", display)

	d3, err := reopened.IndexDocument("doc-c", "new", "document")
	require.NoError(t, err)
	assert.Greater(t, d3.ID, d1.ID)
	_, err = reopened.IndexDocument("doc-a", "again", "")
	assert.ErrorIs(t, err, apperrors.ErrDocumentExists)
}

func TestReloadSegmentsPicksUpForeignFlush(t *testing.T) {
	cfg := testConfig(t)
	reader, err := NewEngine(cfg)
	require.NoError(t, err)
	defer reader.Close()

	writer, err := NewEngine(cfg)
	require.NoError(t, err)
	_, err = writer.IndexDocument("doc-a", "Digital library", "books")
	require.NoError(t, err)
	require.NoError(t, writer.Flush())

	added, err := reader.ReloadSegments()
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, reader.DocCount())

	added, err = reader.ReloadSegments()
	require.NoError(t, err)
	assert.Zero(t, added)

	cf, err := reader.CollectionFrequency("digital")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cf)
	require.NoError(t, writer.Close())
}

func TestReloadSegmentsSkipsCorruptSegment(t *testing.T) {
	cfg := testConfig(t)
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.IndexDocument("doc-a", "Digital library", "books")
	require.NoError(t, err)
	require.NoError(t, e.Flush())

	entries, err := os.ReadDir(cfg.DataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(cfg.DataDir, entries[0].Name()))
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(data[len(data)-segment.FooterSize+8:], 1<<63)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "seg_99999999999999999999"+segment.FileExt), data, 0644))

	var added int
	require.NotPanics(t, func() {
		added, err = e.ReloadSegments()
	})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 1, e.DocCount())
}
