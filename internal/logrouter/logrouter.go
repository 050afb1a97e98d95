// Package logrouter implements spec.md §1's "log router" external
// collaborator: the component that sits between the transport and the
// detector, persisting every event for offline analysis and forwarding it
// synchronously to the detector. Grounded on pilot.c's LogEvent, which both
// appends to the process's trace file and calls directly into the detector.
package logrouter

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vburojevic/pilot/internal/detector"
	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/output"
	"github.com/vburojevic/pilot/internal/registry"
	"github.com/vburojevic/pilot/internal/wire"
)

// Router persists every wire event as NDJSON and forwards it synchronously
// to a Detector. It is the single serialization point for the detector's
// single-threaded contract (spec §5): Route takes Router's own lock, so it
// may be called from any number of process goroutines.
type Router struct {
	mu       sync.Mutex
	codec    *wire.Codec
	det      *detector.Detector
	emit     *output.Emitter
	log      *zap.Logger
	nextProc []string // subject -> process name, for NDJSON records
}

// New builds a Router that writes events to emit and feeds them to det.
func New(codec *wire.Codec, det *detector.Detector, emit *output.Emitter, reg *registry.Registry, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	names := make([]string, reg.NumProcesses())
	for _, p := range reg.Processes() {
		names[p.Rank] = p.Name
	}
	return &Router{codec: codec, det: det, emit: emit, log: log, nextProc: names}
}

// Route parses and persists one wire-format event string, then hands it to
// the detector. A non-nil error is always terminal (spec §5/§7): the caller
// must stop launching further operations on this graph.
func (r *Router) Route(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, parseErr := r.codec.Parse(text)
	if parseErr == nil {
		rec := &domain.EventRecord{
			Class:   string(ev.Class),
			Subject: ev.Subject,
			Opcode:  string(ev.Opcode),
			Object:  ev.Object,
			Raw:     ev.Raw,
		}
		if ev.Subject < len(r.nextProc) {
			rec.Process = r.nextProc[ev.Subject]
		}
		if r.emit != nil {
			if err := r.emit.Event(rec); err != nil {
				r.log.Warn("logrouter: failed to persist event", zap.Error(err))
			}
		}
	}

	if err := r.det.Event(text); err != nil {
		r.log.Debug("logrouter: detector reported terminal condition", zap.Error(err))
		return err
	}
	return nil
}

// RouteFinish is a convenience wrapper that builds and routes a process-exit
// event, used by internal/engine when a process body returns.
func (r *Router) RouteFinish(subject int) error {
	return r.Route(r.codec.EncodeFinish(subject))
}

// Snapshot returns the detector's current process table under Router's
// lock, the only safe way to read it while other goroutines may still be
// calling Route — the detector itself has no lock of its own, trusting
// Router to serialize every access as spec §5 requires.
func (r *Router) Snapshot() detector.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.det.Snapshot()
}

func (r *Router) String() string {
	return fmt.Sprintf("logrouter.Router{processes=%d}", len(r.nextProc))
}
