package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/searchtest"
)

func syntheticIndex(n int) *searchtest.Index {
	docs := make([]searchtest.Doc, 0, n)
	for i := 1; i <= n; i++ {
		terms := index.TermCounts{"library": int64(1 + i%4)}
		if i%3 == 0 {
			terms["digital"] = int64(1 + i%5)
		}
		docs = append(docs, searchtest.Doc{ID: i, Length: int64(50 + i%200), Terms: terms})
	}
	return searchtest.New(docs...)
}

func BenchmarkRetrieveWithFeedback(b *testing.B) {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer slog.SetDefault(prev)

	for _, size := range []int{1000, 10000} {
		idx := syntheticIndex(size)
		exec := newExecutor(idx)
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.RetrieveWithFeedback(context.Background(), query, 10, 5, 0.5); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
