package output

import (
	"io"

	"github.com/vburojevic/pilot/internal/domain"
)

// Emitter wraps NDJSONWriter with helpers that reuse one encoder, mirroring
// the teacher's wrapper-per-writer shape.
type Emitter struct {
	w *NDJSONWriter
}

func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: NewNDJSONWriter(w)}
}

func (e *Emitter) Event(ev *domain.EventRecord) error       { return e.w.WriteEvent(ev) }
func (e *Emitter) RunStart(rs *domain.RunStart) error        { return e.w.WriteRunStart(rs) }
func (e *Emitter) RunEnd(re *domain.RunEnd) error            { return e.w.WriteRunEnd(re) }
func (e *Emitter) Deadlock(d *domain.DeadlockRecord) error   { return e.w.WriteDeadlock(d) }
func (e *Emitter) Error(code, msg string) error              { return e.w.WriteError(code, msg) }
func (e *Emitter) Warning(msg string) error                  { return e.w.WriteWarning(msg) }
func (e *Emitter) Heartbeat(h *Heartbeat) error               { return e.w.WriteHeartbeat(h) }
func (e *Emitter) Metadata(version, commit string) error     { return e.w.WriteMetadata(version, commit) }
func (e *Emitter) Info(msg string) error                     { return e.w.WriteInfo(msg) }
