package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/output"
)

// AnalyzeCmd summarizes a recorded NDJSON event log: event counts by
// opcode/process, and whether (and why) the run aborted.
type AnalyzeCmd struct {
	File            string `arg:"" required:"" help:"NDJSON event log to analyze"`
	PersistPatterns bool   `help:"Save detected abort-reason patterns for future reference (marks new vs known)"`
	PatternFile     string `help:"Custom pattern file path (default: ~/.pilot/patterns.json)"`
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run(globals *Globals) error {
	file, err := os.Open(c.File)
	if err != nil {
		return outputErrorCommon(globals, "file_not_found", fmt.Sprintf("cannot open file: %s", err))
	}
	defer file.Close()

	var events []domain.EventRecord
	var deadlocks []domain.DeadlockRecord

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var typeCheck struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(line, &typeCheck); err != nil {
			globals.Debug("skipping unparseable line: %v", err)
			continue
		}
		switch typeCheck.Type {
		case "event":
			var rec domain.EventRecord
			if json.Unmarshal(line, &rec) == nil {
				events = append(events, rec)
			}
		case "deadlock":
			var rec domain.DeadlockRecord
			if json.Unmarshal(line, &rec) == nil {
				deadlocks = append(deadlocks, rec)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return outputErrorCommon(globals, "read_error", fmt.Sprintf("error reading file: %s", err))
	}
	if len(events) == 0 {
		return outputErrorCommon(globals, "no_entries", "no event records found in file")
	}

	analyzer := output.NewAnalyzer()
	summary := analyzer.Summarize(events)
	summary.Aborted = len(deadlocks) > 0
	if summary.Aborted {
		summary.AbortReason = deadlocks[0].Reason
	}
	patterns := analyzer.DetectAbortPatterns(deadlocks)

	if globals.Format == "ndjson" {
		writer := output.NewNDJSONWriter(globals.Stdout)
		if c.PersistPatterns {
			store := output.NewPatternStore(c.PatternFile)
			enhanced := store.RecordPatterns(patterns)
			if err := store.Save(); err != nil {
				globals.Debug("failed to save patterns: %v", err)
			}
			return writer.WriteRaw(struct {
				Type     string                        `json:"type"`
				Summary  *domain.RunSummary            `json:"summary"`
				Patterns []output.EnhancedAbortPattern `json:"patterns,omitempty"`
			}{Type: "analysis", Summary: summary, Patterns: enhanced})
		}
		return writer.WriteRaw(output.NewAnalysisOutput(summary, patterns))
	}

	fmt.Fprintf(globals.Stdout, "Analysis of %s\n", c.File)
	fmt.Fprintln(globals.Stdout, "===================")
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintf(globals.Stdout, "Total events: %d\n", summary.TotalEvents)
	for op, n := range summary.ByOpcode {
		fmt.Fprintf(globals.Stdout, "  %-4s %d\n", op, n)
	}
	fmt.Fprintln(globals.Stdout)
	if summary.Aborted {
		fmt.Fprintln(globals.Stdout, output.Styles.Danger.Render("Aborted: "+summary.AbortReason))
	} else {
		fmt.Fprintln(globals.Stdout, output.Styles.Success.Render("Completed without deadlock"))
	}

	if len(patterns) > 0 {
		fmt.Fprintln(globals.Stdout)
		fmt.Fprintln(globals.Stdout, "Abort patterns:")
		if c.PersistPatterns {
			store := output.NewPatternStore(c.PatternFile)
			enhanced := store.RecordPatterns(patterns)
			if err := store.Save(); err != nil {
				globals.Debug("failed to save patterns: %v", err)
			}
			for _, p := range enhanced {
				status := "[NEW]"
				if !p.IsNew {
					status = "[KNOWN]"
				}
				fmt.Fprintf(globals.Stdout, "  %s (%dx) %s\n", status, p.Count, p.Reason)
			}
		} else {
			for _, p := range patterns {
				fmt.Fprintf(globals.Stdout, "  (%dx) %s\n", p.Count, p.Reason)
			}
		}
	}

	return nil
}
