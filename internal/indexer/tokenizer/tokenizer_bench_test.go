package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The digital library of the future",
	"medium": `Pseudo relevance feedback assumes the top ranked documents of a first
        retrieval pass are relevant. Their aggregate term statistics form a
        feedback language model that is interpolated with each candidate's own
        smoothed document model before the candidates are scored again.`,
	"long": strings.Repeat(`Query likelihood retrieval scores a document by the probability
        that its language model generates the query. Dirichlet smoothing mixes the
        maximum likelihood estimate with the collection model so that unseen terms
        keep a non-zero probability and long documents rely less on the prior. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkNormalize(b *testing.B) {
	words := []string{
		"retrieval", "smoothing", "libraries", "documents",
		"relational", "conditional", "likelihood", "feedback",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_, _ = Normalize(w)
		}
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	base := "relevance feedback language model smoothing "
	for _, size := range []int{10, 100, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
