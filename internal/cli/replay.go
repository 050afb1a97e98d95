package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vburojevic/pilot/internal/detector"
	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/graphio"
	"github.com/vburojevic/pilot/internal/output"
	"github.com/vburojevic/pilot/internal/perr"
	"github.com/vburojevic/pilot/internal/wire"
)

// ReplayCmd feeds a previously recorded NDJSON event log through a fresh
// detector instance, with no live transport — useful for offline diagnosis
// of a run captured elsewhere. The original graph descriptor is required so
// the detector has the same channel/bundle endpoints the live run had; the
// NDJSON log itself only carries object ids, not their wiring.
type ReplayCmd struct {
	File  string `arg:"" required:"" help:"NDJSON event log produced by pilot run"`
	Graph string `required:"" help:"Path to the JSON graph descriptor the log was recorded against"`
}

// Run executes the replay command.
func (c *ReplayCmd) Run(globals *Globals) error {
	reg, err := graphio.Load(c.Graph)
	if err != nil {
		return outputErrorCommon(globals, "graph_load_failed", err.Error())
	}

	file, err := os.Open(c.File)
	if err != nil {
		return outputErrorCommon(globals, "file_not_found", fmt.Sprintf("cannot open file: %s", err))
	}
	defer file.Close()

	var records []domain.EventRecord
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
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return outputErrorCommon(globals, "read_error", fmt.Sprintf("error reading file: %s", err))
	}
	if len(records) == 0 {
		return outputErrorCommon(globals, "no_entries", "no event records found in file")
	}

	codec := &wire.Codec{Sep: globals.Config.Wire.Separator[0], FrameLen: globals.Config.Wire.FrameLen}
	det := detector.New(detector.Options{Codec: codec, QueueCap: globals.Config.Detector.QueueCap})
	if err := det.Start(reg); err != nil {
		return err
	}

	var dl *perr.DeadlockError
	var runErr error
	replayed := 0
	for _, rec := range records {
		if err := det.Event(rec.Raw); err != nil {
			runErr = err
			if asDeadlock(err, &dl) {
				break
			}
			break
		}
		replayed++
	}

	if globals.Format == "ndjson" {
		emit := output.NewEmitter(globals.Stdout)
		for _, rec := range records[:replayed] {
			rec := rec
			emit.Event(&rec)
		}
		if dl != nil {
			emit.Deadlock(&domain.DeadlockRecord{Process: dl.Process, Argument: dl.Argument, Event: dl.Event, Reason: dl.Reason, Trace: dl.Trace})
		}
	} else {
		tw := output.NewTextWriter(globals.Stdout)
		for _, rec := range records[:replayed] {
			rec := rec
			tw.WriteEvent(&rec)
		}
		if dl != nil {
			fmt.Fprintf(globals.Stdout, "\nDEADLOCK: %s(%d): %s\n%s\n", dl.Process, dl.Argument, dl.Event, dl.Reason)
			for _, line := range dl.Trace {
				fmt.Fprintf(globals.Stdout, "%s\n", line)
			}
		}
		fmt.Fprintf(globals.Stderr, "\nReplayed %d/%d events\n", replayed, len(records))
	}

	if dl != nil {
		return dl
	}
	return runErr
}

func asDeadlock(err error, dl **perr.DeadlockError) bool {
	if d, ok := err.(*perr.DeadlockError); ok {
		*dl = d
		return true
	}
	return false
}
