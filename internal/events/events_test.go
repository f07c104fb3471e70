package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"TranscriptPipeline/internal/domain"
)

func TestEmitWritesOneObjectPerLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEmitter(&buf)
	e.now = func() time.Time {
		return time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	}

	e.Emit("T-100", domain.StatusStarted, F("attempt", 1))
	e.Emit("T-100", domain.StatusFetchSuccess, Module("fetcher"), F("account_name", "Acme"))

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first := lines[0]
	if first["transcript_id"] != "T-100" {
		t.Fatalf("transcript_id = %v", first["transcript_id"])
	}
	if first["status"] != "PROCESSING_STARTED" {
		t.Fatalf("status = %v", first["status"])
	}
	if first["attempt"] != float64(1) {
		t.Fatalf("attempt = %v", first["attempt"])
	}
	if first["timestamp"] != "2026-03-01T07:00:00Z" {
		t.Fatalf("timestamp = %v", first["timestamp"])
	}

	second := lines[1]
	if second["module"] != "fetcher" {
		t.Fatalf("module = %v", second["module"])
	}
	if second["account_name"] != "Acme" {
		t.Fatalf("account_name = %v", second["account_name"])
	}
}

func TestEmitSkipsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEmitter(&buf)

	e.Emit("T-101", domain.StatusPipelineError, Err(errors.New("boom")), F("detail", ""))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["error"] != "boom" {
		t.Fatalf("error = %v", entry["error"])
	}
	if _, ok := entry["detail"]; ok {
		t.Fatal("empty field should be omitted")
	}
}
