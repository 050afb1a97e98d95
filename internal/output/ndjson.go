package output

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/vburojevic/pilot/internal/domain"
)

// NDJSONWriter writes run events as NDJSON, one JSON object per line. This is
// the format internal/logrouter persists every wire event to, and the format
// `pilot replay`/`pilot analyze`/`pilot query` consume.
type NDJSONWriter struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{w: w, encoder: enc}
}

// Heartbeat is a keepalive message for long-running `pilot watch` sessions.
type Heartbeat struct {
	Type            string `json:"type"`
	SchemaVersion   int    `json:"schemaVersion"`
	Timestamp       string `json:"timestamp"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	EventsSinceLast int    `json:"events_since_last"`
}

// InfoOutput represents an informational message.
type InfoOutput struct {
	Type          string `json:"type"` // Always "info"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
}

// WarningOutput represents a warning message.
type WarningOutput struct {
	Type          string `json:"type"` // Always "warning"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
}

// MetadataOutput describes runtime/tool metadata for agents.
type MetadataOutput struct {
	Type          string `json:"type"` // Always "metadata"
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
}

// WriteEvent outputs one wire event record.
func (w *NDJSONWriter) WriteEvent(ev *domain.EventRecord) error {
	ev.Type = "event"
	return w.encoder.Encode(ev)
}

// WriteRunStart outputs a run-start marker.
func (w *NDJSONWriter) WriteRunStart(rs *domain.RunStart) error {
	rs.SchemaVersion = SchemaVersion
	return w.encoder.Encode(rs)
}

// WriteRunEnd outputs a run-end marker.
func (w *NDJSONWriter) WriteRunEnd(re *domain.RunEnd) error {
	re.SchemaVersion = SchemaVersion
	return w.encoder.Encode(re)
}

// WriteDeadlock outputs a diagnosed deadlock.
func (w *NDJSONWriter) WriteDeadlock(d *domain.DeadlockRecord) error {
	d.Type = "deadlock"
	return w.encoder.Encode(d)
}

// WriteError outputs an error.
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	err := domain.NewErrorOutput(code, message)
	if len(hint) > 0 {
		err.Hint = hint[0]
	}
	err.SchemaVersion = SchemaVersion
	return w.encoder.Encode(err)
}

// WriteRaw outputs raw JSON data.
func (w *NDJSONWriter) WriteRaw(v interface{}) error {
	return w.encoder.Encode(v)
}

// WriteHeartbeat outputs a heartbeat keepalive message.
func (w *NDJSONWriter) WriteHeartbeat(h *Heartbeat) error {
	h.Type = "heartbeat"
	h.SchemaVersion = SchemaVersion
	return w.encoder.Encode(h)
}

// WriteInfo outputs an informational message.
func (w *NDJSONWriter) WriteInfo(message string) error {
	return w.encoder.Encode(&InfoOutput{Type: "info", SchemaVersion: SchemaVersion, Message: message})
}

// WriteWarning outputs a warning message.
func (w *NDJSONWriter) WriteWarning(message string) error {
	return w.encoder.Encode(&WarningOutput{Type: "warning", SchemaVersion: SchemaVersion, Message: message})
}

// WriteMetadata outputs runtime metadata.
func (w *NDJSONWriter) WriteMetadata(version, commit string) error {
	return w.encoder.Encode(&MetadataOutput{Type: "metadata", SchemaVersion: SchemaVersion, Version: version, Commit: commit})
}

// TextWriter writes run events as human-readable text.
type TextWriter struct {
	w io.Writer
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// WriteEvent outputs one event as a styled text line.
func (w *TextWriter) WriteEvent(ev *domain.EventRecord) error {
	opIndicator := OpcodeIndicator(ev.Opcode)
	process := Styles.Process.Render("[" + ev.Process + "]")
	line := Styles.Timestamp.Render(ev.Timestamp) + " " + opIndicator + " " + process
	if ev.Object != 0 {
		line += " " + Styles.Subsystem.Render("obj="+strconv.Itoa(ev.Object))
	}
	line += "\n"
	_, err := io.WriteString(w.w, line)
	return err
}

// WriteRunEnd outputs a styled run summary.
func (w *TextWriter) WriteRunEnd(re *domain.RunEnd) error {
	header := Styles.Header.Render("Run Summary")
	line := "\n" + header + "\n"
	line += Styles.Label.Render("Total events: ") + Styles.Value.Render(strconv.Itoa(re.Summary.TotalEvents)) + "\n"
	if re.Aborted {
		line += Styles.Danger.Render("DEADLOCK: "+re.AbortProcess+": "+re.AbortReason) + "\n"
	} else {
		line += Styles.Success.Render("Completed without deadlock") + "\n"
	}
	_, err := io.WriteString(w.w, line)
	return err
}

// WriteError outputs a styled error.
func (w *TextWriter) WriteError(code, message string) error {
	errorLabel := Styles.Danger.Render("Error")
	codeStr := Styles.Warning.Render("[" + code + "]")
	line := errorLabel + " " + codeStr + ": " + message + "\n"
	_, err := io.WriteString(w.w, line)
	return err
}

// WriteHeartbeat outputs a styled heartbeat.
func (w *TextWriter) WriteHeartbeat(h *Heartbeat) error {
	label := Styles.Info.Render("[HEARTBEAT]")
	line := label + " " + Styles.Label.Render("uptime=") + Styles.Value.Render(strconv.Itoa(int(h.UptimeSeconds))+"s")
	line += " " + Styles.Label.Render("events_since_last=") + Styles.Value.Render(strconv.Itoa(h.EventsSinceLast)) + "\n"
	_, err := io.WriteString(w.w, line)
	return err
}
