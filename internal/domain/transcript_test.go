package domain

import "testing"

func TestRecordComplete(t *testing.T) {
	t.Parallel()

	rec := TranscriptRecord{
		TranscriptID:   "T-1",
		AccountName:    "Acme",
		AccountNumber:  "42",
		SpeakerName:    "Dana Cruz",
		SpeakerEmail:   "dana@acme.test",
		CSEmail:        "cs@vendor.test",
		AMEmail:        "am@vendor.test",
		TranscriptText: "hello",
	}
	if !rec.Complete() {
		t.Fatal("fully populated record should be complete")
	}

	rec.AMEmail = ""
	if rec.Complete() {
		t.Fatal("record with a missing field should be incomplete")
	}
}

func TestWorkItemRetry(t *testing.T) {
	t.Parallel()

	item := NewWorkItem("T-1")
	if item.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", item.Attempt)
	}

	next := item.Retry()
	if next.ID != "T-1" || next.Attempt != 2 {
		t.Fatalf("retry = %+v, want T-1 attempt 2", next)
	}
	if item.Attempt != 1 {
		t.Fatal("retry must not mutate the original item")
	}
}
