// Package detector implements the online deadlock detector: the dependency
// matrix, process state table, channel usage table, event queue, parser
// hookup, cycle search, and event handler of spec §4. It is the core of the
// pilot library (spec §1/§2) and the only component with this specification's
// full algorithmic weight.
package detector

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/perr"
	"github.com/vburojevic/pilot/internal/registry"
	"github.com/vburojevic/pilot/internal/wire"
)

// Options configures a Detector instance.
type Options struct {
	Codec   *wire.Codec
	Logger  *zap.Logger
	Clock   clock.Clock
	QueueCap int // soft cap on queued-but-unhandled events; 0 = unbounded
}

// Detector is the live deadlock detector for one process graph run. It is
// single-threaded by contract: Start/Event/End must be called sequentially
// by one goroutine (the log router), matching spec §5's "consumes events one
// at a time" model.
type Detector struct {
	reg    *registry.Registry
	codec  *wire.Codec
	log    *zap.Logger
	clock  clock.Clock

	n           int // number of declared user processes
	worldsize   int // n + any auxiliary transport ranks
	numChannels int

	depends []domain.DepKind // flattened n*n matrix, D[p][q] = depends[p*n+q]
	state   []domain.ProcState
	blocked []int    // outstanding-dependency counter per process
	cause   []string // cause-event text, empty when not blocked

	chanProc []int // chanProc[c] = process id occupying channel c, -1 = idle

	queue   *eventQueue
	started bool
	ended   bool
}

// New constructs a Detector. Start must be called before Event.
func New(opts Options) *Detector {
	if opts.Codec == nil {
		opts.Codec = wire.NewCodec()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Detector{
		codec: opts.Codec,
		log:   opts.Logger,
		clock: opts.Clock,
		queue: newEventQueue(opts.QueueCap),
	}
}

// Start allocates the matrix and tables for the given registry (spec §6
// "start(env)"). All user processes begin RUN; DEAD is never an initial
// state.
func (d *Detector) Start(reg *registry.Registry) error {
	if d.started {
		return fmt.Errorf("detector: Start called twice")
	}
	d.reg = reg
	d.n = reg.NumProcesses()
	d.worldsize = d.n // no auxiliary transport ranks in the in-process backend
	d.numChannels = reg.NumChannels()

	d.depends = make([]domain.DepKind, d.n*d.n)
	d.state = make([]domain.ProcState, d.worldsize)
	d.blocked = make([]int, d.worldsize)
	d.cause = make([]string, d.worldsize)

	d.chanProc = make([]int, d.numChannels+1)
	for c := 1; c <= d.numChannels; c++ {
		d.chanProc[c] = -1
	}

	d.started = true
	d.log.Debug("detector started",
		zap.Int("processes", d.n), zap.Int("channels", d.numChannels), zap.Int("bundles", reg.NumBundles()))
	return nil
}

// Event consumes one wire-format event string (spec §6 "event(text)"). It
// parses, enqueues, and then repeatedly scans the queue applying the
// restart-on-progress discipline of spec §4.5 until a fixed point. A
// returned error is always terminal: either a *perr.DeadlockError (the
// diagnosed deadlock) or a parse/resource system error.
func (d *Detector) Event(text string) error {
	if !d.started {
		return fmt.Errorf("detector: Event called before Start")
	}
	ev, err := d.codec.Parse(text)
	if err != nil {
		return err
	}
	if ev.Subject >= len(d.state) {
		return perr.NewParseError(text, fmt.Sprintf("subject rank %d out of range", ev.Subject))
	}
	if !d.queue.push(ev) {
		return perr.NewResourceError("event queue exceeded its soft cap")
	}

	for {
		foundWork := false
		for i := range d.queue.items {
			it := &d.queue.items[i]
			if it.handled {
				continue
			}
			if d.state[it.ev.Subject] != domain.StateRun {
				continue
			}
			if err := d.handle(it.ev); err != nil {
				return err
			}
			it.handled = true
			foundWork = true
			break // restart scan from queue head
		}
		if !foundWork {
			break
		}
		if d.queue.compact() == 0 {
			break
		}
	}
	return nil
}

// End flushes the detector: the queue must compact to empty, otherwise some
// process never unblocked and the run is in an inconsistent state (spec §5,
// §6 "end()").
func (d *Detector) End() error {
	if d.queue.compact() != 0 {
		return perr.NewResourceError("event queue not empty at End")
	}
	d.ended = true
	d.log.Debug("detector ended")
	return nil
}

// handle dispatches one parsed event to the algorithms of spec §4.5.
func (d *Detector) handle(ev domain.Event) error {
	switch ev.Opcode {
	case domain.OpWrite:
		ch := d.reg.Channel(ev.Object)
		_, err := d.makeDepend(ev, ch.Consumer, ch.ID, domain.DepAwaitRead)
		return err

	case domain.OpRead:
		ch := d.reg.Channel(ev.Object)
		_, err := d.makeDepend(ev, ch.Producer, ch.ID, domain.DepAwaitWrite)
		return err

	case domain.OpSelect:
		bundle := d.reg.Bundle(ev.Object)
		countDeps := 0
		for _, cid := range bundle.Members {
			ch := d.reg.Channel(cid)
			res, err := d.makeDepend(ev, ch.Producer, ch.ID, domain.DepSelect)
			if err != nil {
				return err
			}
			if res == depMatched {
				countDeps = 1
				break
			}
			if res == depInstalled {
				countDeps++
			}
		}
		if countDeps == 0 {
			text := ev.CauseText()
			if d.cause[ev.Subject] != "" {
				text = d.cause[ev.Subject]
			}
			return d.abort(ev.Subject, text, "Select cannot be fulfilled")
		}
		return nil

	case domain.OpBroadcast:
		bundle := d.reg.Bundle(ev.Object)
		for _, cid := range bundle.Members {
			ch := d.reg.Channel(cid)
			if _, err := d.makeDepend(ev, ch.Consumer, ch.ID, domain.DepAwaitRead); err != nil {
				return err
			}
		}
		return nil

	case domain.OpGather:
		bundle := d.reg.Bundle(ev.Object)
		for _, cid := range bundle.Members {
			ch := d.reg.Channel(cid)
			if _, err := d.makeDepend(ev, ch.Producer, ch.ID, domain.DepAwaitWrite); err != nil {
				return err
			}
		}
		return nil

	case domain.OpHasData, domain.OpTrySelect:
		return nil // non-blocking, no deadlock implications

	case domain.OpFinish:
		return d.removeDepends(ev.Subject)

	default:
		return perr.NewParseError(ev.Raw, "unhandled opcode "+string(ev.Opcode))
	}
}

// abort raises a diagnosed-deadlock error citing process procID, event text,
// and reason, with no traceback (used for the five non-cycle reasons).
func (d *Detector) abort(procID int, event, reason string) error {
	pd := d.reg.Process(procID)
	err := perr.NewDeadlock(pd.Name, pd.Argument, event, reason, nil)
	d.log.Error("deadlock detected", zap.String("process", pd.Name), zap.Int("argument", pd.Argument),
		zap.String("event", event), zap.String("reason", reason))
	return err
}

// abortCycle raises the circular-wait diagnosis with the traceback built by
// isCycle.
func (d *Detector) abortCycle(procID int, trace []string) error {
	pd := d.reg.Process(procID)
	err := perr.NewDeadlock(pd.Name, pd.Argument, d.cause[procID], "Operation creates circular wait with above processes", trace)
	d.log.Error("deadlock detected: circular wait", zap.String("process", pd.Name), zap.Int("argument", pd.Argument),
		zap.Strings("trace", trace))
	return err
}

// Snapshot returns a read-only view of current process states, useful for
// CLI/TUI inspection (internal/output, internal/tui) without exposing the
// mutable matrix itself.
type Snapshot struct {
	States  []domain.ProcState
	Blocked []int
	Causes  []string
}

// Snapshot captures the current process table.
func (d *Detector) Snapshot() Snapshot {
	return Snapshot{
		States:  append([]domain.ProcState(nil), d.state...),
		Blocked: append([]int(nil), d.blocked...),
		Causes:  append([]string(nil), d.cause...),
	}
}
