// Package corpus reads JSON-lines corpora, one ingestion.Document per line,
// and bulk loads them into an index.
package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
)

const maxLineSize = 4 << 20

// Stats summarises one load.
type Stats struct {
	Indexed    int
	Duplicates int
	Rejected   int
}

// Scan decodes r line by line and calls fn with each document and its
// 1-based line number. Blank lines are ignored. Decoding errors abort the
// scan.
func Scan(r io.Reader, fn func(line int, doc ingestion.Document) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc ingestion.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(line, doc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading corpus: %w", err)
	}
	return nil
}

// ReadAll collects every document of r.
func ReadAll(r io.Reader) ([]ingestion.Document, error) {
	var docs []ingestion.Document
	err := Scan(r, func(_ int, doc ingestion.Document) error {
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

// Load indexes every valid document of r. Invalid documents and display
// ids already in the index are counted and skipped.
func Load(ctx context.Context, r io.Reader, idx consumer.Indexer) (Stats, error) {
	logger := slog.Default().With("component", "corpus-loader")
	var stats Stats
	err := Scan(r, func(line int, doc ingestion.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := validator.ValidateDocument(&doc); err != nil {
			stats.Rejected++
			logger.Warn("skipping invalid document", "line", line, "error", err)
			return nil
		}
		_, err := idx.IndexDocument(doc.ID, doc.Title, doc.Body)
		switch {
		case errors.Is(err, apperrors.ErrDocumentExists):
			stats.Duplicates++
			logger.Warn("skipping duplicate document", "line", line, "id", doc.ID)
			return nil
		case err != nil:
			return fmt.Errorf("line %d: %w", line, err)
		}
		stats.Indexed++
		return nil
	})
	logger.Info("corpus loaded",
		"indexed", stats.Indexed,
		"duplicates", stats.Duplicates,
		"rejected", stats.Rejected,
	)
	return stats, err
}
