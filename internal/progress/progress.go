// Package progress reports pipeline phases to the terminal or, for
// programmatic consumers, as JSON lines.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
)

// Reporter emits phase and result records for one run.
type Reporter interface {
	// Phase reports entering phase current of total.
	Phase(message string, current, total int)
	// Error reports a fatal run error.
	Error(message string)
	// Result reports the final outcome as an arbitrary record.
	Result(v any)
}

// NewHuman returns a Reporter writing `[2/5] (40%) message` lines.
func NewHuman(w io.Writer) Reporter {
	return &human{w: w}
}

type human struct {
	w io.Writer
}

func (h *human) Phase(message string, current, total int) {
	percent := 0
	if total > 0 {
		percent = current * 100 / total
	}
	fmt.Fprintf(h.w, "[%d/%d] (%d%%) %s\n", current, total, percent, message)
}

func (h *human) Error(message string) {
	fmt.Fprintf(h.w, "ERROR: %s\n", message)
}

func (h *human) Result(v any) {
	// Human output is produced by the orchestrator; nothing to add here.
}

// NewJSON returns a Reporter emitting one JSON object per line, matching
// the protocol editor integrations parse.
func NewJSON(w io.Writer) Reporter {
	return &jsonLines{enc: json.NewEncoder(w)}
}

type jsonLines struct {
	enc *json.Encoder
}

type progressRecord struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Percent int    `json:"percent"`
}

func (j *jsonLines) Phase(message string, current, total int) {
	percent := 0
	if total > 0 {
		percent = current * 100 / total
	}
	_ = j.enc.Encode(progressRecord{
		Type:    "progress",
		Message: message,
		Current: current,
		Total:   total,
		Percent: percent,
	})
}

func (j *jsonLines) Error(message string) {
	_ = j.enc.Encode(map[string]string{"type": "error", "message": message})
}

func (j *jsonLines) Result(v any) {
	_ = j.enc.Encode(v)
}

// Silent discards everything; used by --quiet.
type Silent struct{}

func (Silent) Phase(string, int, int) {}
func (Silent) Error(string)           {}
func (Silent) Result(any)             {}
