package output

import (
	"testing"

	"github.com/vburojevic/pilot/internal/domain"
)

func BenchmarkSummarize(b *testing.B) {
	a := NewAnalyzer()
	records := make([]domain.EventRecord, 1000)
	for i := range records {
		records[i] = domain.EventRecord{Process: "p0", Opcode: "Wri", Object: 1}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.Summarize(records)
	}
}

func BenchmarkDetectAbortPatterns(b *testing.B) {
	a := NewAnalyzer()
	deadlocks := make([]domain.DeadlockRecord, 200)
	for i := range deadlocks {
		deadlocks[i] = domain.DeadlockRecord{Process: "p0", Reason: "Conflicting channels create deadly embrace"}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.DetectAbortPatterns(deadlocks)
	}
}
