package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ssandoval/treasury-cli/internal/config"
	"github.com/ssandoval/treasury-cli/internal/model"
)

func sampleEnvelope() model.Envelope {
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    map[string]any{"plan_id": "plan_abc", "can_execute": true},
		Meta: model.EnvelopeMeta{
			RequestID: "req_1",
			Timestamp: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			Command:   "plan",
		},
	}
}

func TestRenderJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, sampleEnvelope(), config.Settings{OutputMode: "json"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["success"] != true {
		t.Fatalf("expected success in envelope, got %v", decoded)
	}
}

func TestRenderResultsOnlyOmitsEnvelope(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, sampleEnvelope(), config.Settings{OutputMode: "json", ResultsOnly: true})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if _, ok := decoded["meta"]; ok {
		t.Fatal("results-only output should not carry envelope meta")
	}
	if decoded["plan_id"] != "plan_abc" {
		t.Fatalf("expected raw data payload, got %v", decoded)
	}
}

func TestRenderPlainEmitsKeyValueLines(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, sampleEnvelope(), config.Settings{OutputMode: "plain", ResultsOnly: true})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, `plan_id="plan_abc"`) {
		t.Fatalf("expected key=value output, got %q", line)
	}
}
