package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/filter"
	"github.com/vburojevic/pilot/internal/output"
)

// QueryCmd filters a recorded NDJSON event log by process, opcode, or
// channel/bundle id, the offline analogue of watching a live graph.
type QueryCmd struct {
	File    string   `arg:"" required:"" help:"NDJSON event log to filter"`
	Process []string `help:"Keep only events from these process names (repeatable)"`
	Opcode  []string `help:"Keep only events with these opcodes, e.g. Wri, Rea, Sel (repeatable)"`
	Channel []string `help:"Keep only events whose object id (channel or bundle) matches (repeatable)"`
	Pattern string   `short:"p" help:"Regex to match against the raw wire text"`
}

// Run executes the query command.
func (c *QueryCmd) Run(globals *Globals) error {
	chain := filter.NewChain()
	if pf := filter.NewProcessFilter(c.Process); pf != nil {
		chain.Add(pf)
	}
	if of := filter.NewOpcodeFilter(c.Opcode); of != nil {
		chain.Add(of)
	}
	cf, err := filter.NewChannelFilter(c.Channel)
	if err != nil {
		return outputErrorCommon(globals, "invalid_channel_filter", err.Error())
	}
	if cf != nil {
		chain.Add(cf)
	}
	rp, err := filter.NewRawPattern(c.Pattern)
	if err != nil {
		return outputErrorCommon(globals, "invalid_pattern", err.Error())
	}
	if rp != nil {
		chain.Add(rp)
	}

	file, err := os.Open(c.File)
	if err != nil {
		return outputErrorCommon(globals, "file_not_found", fmt.Sprintf("cannot open file: %s", err))
	}
	defer file.Close()

	var ndjson *output.NDJSONWriter
	var text *output.TextWriter
	if globals.Format == "ndjson" {
		ndjson = output.NewNDJSONWriter(globals.Stdout)
	} else {
		text = output.NewTextWriter(globals.Stdout)
	}

	matched := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.EventRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Type != "event" {
			continue
		}
		if !chain.Match(&rec) {
			continue
		}
		matched++
		if ndjson != nil {
			ndjson.WriteEvent(&rec)
		} else {
			text.WriteEvent(&rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return outputErrorCommon(globals, "read_error", fmt.Sprintf("error reading file: %s", err))
	}

	if text != nil {
		fmt.Fprintf(globals.Stderr, "\nMatched %d events\n", matched)
	}
	return nil
}
