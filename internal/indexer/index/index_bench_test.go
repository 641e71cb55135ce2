package index

import (
	"fmt"
	"testing"
)

const benchBody = "digital library collections with relevance feedback over smoothed language models"

func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mi.AddDocument(i+1, fmt.Sprintf("doc-%d", i), "benchmark title", benchBody)
	}
}

func BenchmarkMemoryIndexSearchParallel(b *testing.B) {
	mi := NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		mi.AddDocument(i+1, fmt.Sprintf("doc-%d", i), "digital library", benchBody)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = mi.Search("library")
		}
	})
}

func BenchmarkSnapshotAdd(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := make(Snapshot)
		for doc := 0; doc < 1000; doc++ {
			s.Add(doc, "digital", 2)
			s.Add(doc, "library", 1)
		}
	}
}
