package detector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/perr"
)

// depResult is what makeDepend reports back to its caller (spec §4.2).
type depResult int

const (
	depInstalled depResult = iota
	depDropped
	depMatched
)

// at returns the flattened index of D[p][q].
func (d *Detector) at(p, q int) int { return p*d.n + q }

func (d *Detector) dep(p, q int) domain.DepKind { return d.depends[d.at(p, q)] }

func (d *Detector) setDep(p, q int, k domain.DepKind) { d.depends[d.at(p, q)] = k }

// makeDepend installs D[p][q] <- kind on behalf of subject p operating on
// target q over channel c, applying the rules of spec §4.2 in order. It is
// the algorithmic heart of the detector; every handler but Finish reduces to
// one or more calls here.
func (d *Detector) makeDepend(ev domain.Event, q, c int, kind domain.DepKind) (depResult, error) {
	p := ev.Subject

	// Rule 1: dead target.
	if d.state[q] == domain.StateDead {
		if kind == domain.DepSelect {
			return depDropped, nil // another bundle member may still satisfy
		}
		return 0, d.abort(p, ev.CauseText(), "Process at other end of channel has exited")
	}

	// Rule 2: no symmetric wait exists.
	if d.dep(q, p) == domain.DepNone {
		d.setDep(p, q, kind)
		d.chanProc[c] = p
		if d.state[p] == domain.StateRun {
			d.cause[p] = ev.CauseText()
		}
		d.blocked[p]++
		d.state[p] = domain.StateBlocked

		if kind == domain.DepSelect {
			cyc, _ := d.isCycle(q, p, false)
			if cyc {
				return depDropped, nil
			}
			return depInstalled, nil
		}
		if cyc, trace := d.isCycle(q, p, true); cyc {
			return 0, d.abortCycle(p, trace)
		}
		return depInstalled, nil
	}

	// Rule 3: symmetric wait exists on the same channel.
	if d.chanProc[c] == q {
		sum := int(d.dep(q, p)) + int(kind)
		switch sum {
		case 0: // matched +1/-1
			// Debug-only check that the writing side is the channel's
			// producer; a mismatch is logged, not treated as fatal.
			writer, reader := q, p
			if kind == domain.DepAwaitRead {
				writer, reader = p, q
			}
			if ch := d.reg.Channel(c); ch.Producer != writer || ch.Consumer != reader {
				d.log.Debug("matched dependency does not follow channel direction",
					zap.Int("writer", writer), zap.Int("reader", reader), zap.Int("channel", c))
			}
			d.setDep(q, p, domain.DepNone)
			d.chanProc[c] = -1
			d.blocked[q]--
			if d.blocked[q] == 0 {
				d.state[q] = domain.StateRun
				d.cause[q] = ""
			}
			return depMatched, nil

		case -1: // one side select, other side write/read
			var sel int
			if kind == domain.DepSelect {
				sel = p
			} else {
				sel = q
			}
			d.clearRow(sel)

			if sel == p {
				if d.blocked[p] > 0 {
					d.unblock(p)
				}
				return depMatched, nil
			}
			d.unblock(q)
			return d.makeDepend(ev, q, c, kind)

		default:
			return 0, d.systemError(fmt.Sprintf("impossible dependency sum %d between p=%d q=%d", sum, p, q))
		}
	}

	// Rule 4: symmetric wait exists on a different channel.
	if kind == domain.DepSelect {
		return depDropped, nil
	}
	if d.dep(q, p) == domain.DepSelect {
		d.setDep(q, p, domain.DepNone)
		d.blocked[q]--
		if d.blocked[q] == 0 {
			d.state[q] = domain.StateRun
			return 0, d.abort(p, ev.CauseText(), "Earlier select cannot be fulfilled")
		}
		return d.makeDepend(ev, q, c, kind)
	}
	return 0, d.abort(p, ev.CauseText(), "Conflicting channels create deadly embrace")
}

// clearRow zeroes every outgoing dependency of sel and releases every
// channel it was occupying, as required when a select is satisfied.
func (d *Detector) clearRow(sel int) {
	for r := 0; r < d.n; r++ {
		d.setDep(sel, r, domain.DepNone)
	}
	for ch := 1; ch <= d.numChannels; ch++ {
		if d.chanProc[ch] == sel {
			d.chanProc[ch] = -1
		}
	}
}

// unblock transitions p to RUN and discards its saved cause text.
func (d *Detector) unblock(p int) {
	d.state[p] = domain.StateRun
	d.blocked[p] = 0
	d.cause[p] = ""
}

// isCycle tests whether a directed wait-path exists from p back to q
// through non-zero matrix entries (spec §4.3). When print is true and a
// cycle is found, it returns the traceback lines in unwind order (nearest
// the new edge first).
func (d *Detector) isCycle(p, q int, print bool) (bool, []string) {
	if p == q {
		return true, nil
	}

	firstDep := -1
	for r := 0; r < d.n; r++ {
		switch d.dep(p, r) {
		case domain.DepNone:
			continue
		case domain.DepAwaitRead, domain.DepAwaitWrite:
			firstDep = r
		case domain.DepSelect:
			if d.state[r] == domain.StateRun {
				return false, nil // select may yet be satisfied
			}
			if firstDep < 0 {
				firstDep = r
			}
			continue
		default:
			// unreachable: matrix cells are only ever one of the above
			continue
		}
		break
	}
	if firstDep < 0 {
		return false, nil
	}

	for r := firstDep; r < d.n; r++ {
		thisDep := d.dep(p, r)
		if thisDep == domain.DepNone {
			continue
		}
		d.setDep(p, r, domain.DepNone) // prevent infinite recursion
		cyc, trace := d.isCycle(r, q, print)
		d.setDep(p, r, thisDep)
		if cyc {
			if print {
				line := fmt.Sprintf("Process %q(%d) doing: %s",
					d.reg.Process(p).Name, d.reg.Process(p).Argument, d.cause[p])
				trace = append(trace, line)
			}
			return true, trace
		}
	}
	return false, nil
}

// removeDepends handles a process exit (the Finish opcode), per spec §4.4.
func (d *Detector) removeDepends(q int) error {
	d.state[q] = domain.StateDead
	if q >= d.n {
		return nil // auxiliary transport rank, not a user process
	}

	for p := 0; p < d.n; p++ {
		switch d.dep(p, q) {
		case domain.DepNone:
			continue
		case domain.DepSelect:
			d.setDep(p, q, domain.DepNone)
			d.blocked[p]--
			stillSelecting := false
			for r := 0; r < d.n; r++ {
				if d.dep(p, r) == domain.DepSelect {
					stillSelecting = true
					break
				}
			}
			if !stillSelecting {
				return d.abort(q, d.cause[p], "Process exiting leaves earlier operation hung")
			}
		default: // +1 or -1
			return d.abort(q, d.cause[p], "Process exiting leaves earlier operation hung")
		}
	}
	return nil
}

func (d *Detector) systemError(msg string) error {
	return perr.NewParseError("", msg)
}
