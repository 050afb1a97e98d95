// Package wire frames and parses the event strings exchanged between the
// transport, the log router, and the deadlock detector (spec §4.1, §6). It
// does not touch user payload (de)serialization — that format-string codec
// is an external collaborator and stays out of scope here.
package wire

import (
	"strconv"
	"strings"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/perr"
)

// DefaultSeparator is the field separator used when none is configured.
const DefaultSeparator = '\t'

// DefaultFrameLen is the default maximum encoded line length before a
// continuation marker is required.
const DefaultFrameLen = 80

// opcodes lists the 3-character mnemonics in the order spec §4.1 uses for
// dispatch; order has no semantic effect here but mirrors the C original's
// eventCodes table for ease of cross-reference.
var opcodes = map[string]domain.Opcode{
	string(domain.OpWrite): domain.OpWrite, string(domain.OpRead): domain.OpRead,
	string(domain.OpSelect): domain.OpSelect, string(domain.OpHasData): domain.OpHasData,
	string(domain.OpTrySelect): domain.OpTrySelect, string(domain.OpBroadcast): domain.OpBroadcast,
	string(domain.OpGather): domain.OpGather, string(domain.OpFinish): domain.OpFinish,
}

// Codec frames and parses wire events using a configured separator and frame
// length.
type Codec struct {
	Sep      byte
	FrameLen int
}

// NewCodec returns a Codec with the spec's defaults.
func NewCodec() *Codec {
	return &Codec{Sep: DefaultSeparator, FrameLen: DefaultFrameLen}
}

// EncodeCall builds the wire string for a Call event: T<sep>n<sep>code<sep>object.
func (c *Codec) EncodeCall(subject int, op domain.Opcode, object int) string {
	sep := string(c.Sep)
	return "C" + sep + strconv.Itoa(subject) + sep + string(op) + sep + strconv.Itoa(object)
}

// EncodeFinish builds the wire string for a process-exit lifecycle event.
func (c *Codec) EncodeFinish(subject int) string {
	sep := string(c.Sep)
	return "P" + sep + strconv.Itoa(subject) + sep + string(domain.OpFinish)
}

// Frame splits an encoded event into fixed-length lines joined with a '+'
// continuation marker in the final byte of every line but the last, per
// spec §6. It is the counterpart to Join.
func (c *Codec) Frame(s string) []string {
	frameLen := c.FrameLen
	if frameLen <= 1 || len(s) <= frameLen {
		return []string{s}
	}
	var lines []string
	for len(s) > frameLen {
		lines = append(lines, s[:frameLen-1]+"+")
		s = s[frameLen-1:]
	}
	lines = append(lines, s)
	return lines
}

// Join re-assembles lines produced by Frame (the log router's job per
// spec §6) back into a single event string.
func Join(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		if strings.HasSuffix(l, "+") {
			b.WriteString(l[:len(l)-1])
			continue
		}
		b.WriteString(l)
	}
	return b.String()
}

// Parse turns a framed event string into a domain.Event. It fails the run
// (returns a *perr.ParseError) on malformed input, per spec §4.1/§7.
func (c *Codec) Parse(s string) (domain.Event, error) {
	raw := s
	fields := strings.Split(s, string(c.Sep))
	if len(fields) < 3 {
		return domain.Event{}, perr.NewParseError(raw, "expected at least class, rank, code fields")
	}

	if len(fields[0]) != 1 {
		return domain.Event{}, perr.NewParseError(raw, "class field must be one character")
	}
	class := domain.EventClass(fields[0][0])
	if class != domain.ClassCall && class != domain.ClassLifecycle {
		return domain.Event{}, perr.NewParseError(raw, "unknown event class "+fields[0])
	}

	subject, err := strconv.Atoi(fields[1])
	if err != nil || subject < 0 {
		return domain.Event{}, perr.NewParseError(raw, "invalid subject rank "+fields[1])
	}

	op, ok := opcodes[fields[2]]
	if !ok {
		return domain.Event{}, perr.NewParseError(raw, "unrecognized opcode "+fields[2])
	}

	ev := domain.Event{Class: class, Subject: subject, Opcode: op, Raw: raw}

	if class == domain.ClassCall && op != domain.OpFinish {
		if len(fields) < 4 {
			return domain.Event{}, perr.NewParseError(raw, "call event missing object id")
		}
		object, err := strconv.Atoi(fields[3])
		if err != nil || object < 0 {
			return domain.Event{}, perr.NewParseError(raw, "invalid object id "+fields[3])
		}
		ev.Object = object
	}

	return ev, nil
}
