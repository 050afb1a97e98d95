package output

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/vburojevic/pilot/internal/domain"
)

// Analyzer provides `pilot analyze` summarization of a recorded event log.
type Analyzer struct{}

// NewAnalyzer creates a new event-log analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Summarize aggregates a recorded run's events into a RunSummary.
func (a *Analyzer) Summarize(records []domain.EventRecord) *domain.RunSummary {
	summary := &domain.RunSummary{
		ByOpcode:  make(map[string]int),
		ByProcess: make(map[string]int),
	}
	for _, r := range records {
		summary.TotalEvents++
		summary.ByOpcode[r.Opcode]++
		if r.Process != "" {
			summary.ByProcess[r.Process]++
		}
	}
	return summary
}

// AbortPattern is one recurring deadlock abort reason detected across one or
// more replayed runs.
type AbortPattern struct {
	Reason  string   `json:"reason"`
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
}

// DetectAbortPatterns groups deadlock records by their abort reason, the
// analogue of the teacher's error-message clustering but over the detector's
// closed, enumerable reason set (spec §7) rather than free-text log lines.
func (a *Analyzer) DetectAbortPatterns(deadlocks []domain.DeadlockRecord) []AbortPattern {
	groups := lo.GroupBy(deadlocks, func(d domain.DeadlockRecord) string { return d.Reason })

	patterns := lo.FilterMap(lo.Entries(groups), func(e lo.Entry[string, []domain.DeadlockRecord], _ int) (AbortPattern, bool) {
		if len(e.Value) == 0 {
			return AbortPattern{}, false
		}
		samples := lo.Map(lo.Slice(e.Value, 0, 3), func(d domain.DeadlockRecord, _ int) string {
			return d.Process + ": " + d.Event
		})
		return AbortPattern{Reason: e.Key, Count: len(e.Value), Samples: samples}, true
	})

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Count > patterns[j].Count })
	return patterns
}

// AnalysisOutput wraps a summary for NDJSON output with timing.
type AnalysisOutput struct {
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Summary   *domain.RunSummary  `json:"summary"`
	Patterns  []AbortPattern      `json:"patterns,omitempty"`
}

// NewAnalysisOutput creates an analysis output wrapper.
func NewAnalysisOutput(summary *domain.RunSummary, patterns []AbortPattern) *AnalysisOutput {
	return &AnalysisOutput{Type: "analysis", Timestamp: time.Now(), Summary: summary, Patterns: patterns}
}
