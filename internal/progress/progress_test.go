package progress

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestHumanPhase(t *testing.T) {
	var buf bytes.Buffer
	r := NewHuman(&buf)
	r.Phase("Parsing Scrivener project...", 1, 5)
	r.Phase("Writing output files...", 4, 5)

	out := buf.String()
	if !strings.Contains(out, "[1/5] (20%) Parsing Scrivener project...") {
		t.Errorf("unexpected phase line:\n%s", out)
	}
	if !strings.Contains(out, "[4/5] (80%) Writing output files...") {
		t.Errorf("unexpected phase line:\n%s", out)
	}
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSON(&buf)
	r.Phase("Converting 3 RTF documents...", 3, 5)
	r.Error("boom")
	r.Result(map[string]any{"type": "result", "success": true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 json lines, got %d:\n%s", len(lines), buf.String())
	}

	var phase struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Current int    `json:"current"`
		Total   int    `json:"total"`
		Percent int    `json:"percent"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &phase); err != nil {
		t.Fatalf("phase line is not json: %v", err)
	}
	if phase.Type != "progress" || phase.Current != 3 || phase.Total != 5 || phase.Percent != 60 {
		t.Errorf("phase record = %+v", phase)
	}

	var errRec map[string]string
	if err := json.Unmarshal([]byte(lines[1]), &errRec); err != nil {
		t.Fatalf("error line is not json: %v", err)
	}
	if errRec["type"] != "error" || errRec["message"] != "boom" {
		t.Errorf("error record = %v", errRec)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &result); err != nil {
		t.Fatalf("result line is not json: %v", err)
	}
	if result["type"] != "result" {
		t.Errorf("result record = %v", result)
	}
}
