package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"TranscriptPipeline/internal/domain"
)

// Field is one optional key/value pair attached to an event.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Module tags the event with the pipeline module it belongs to.
func Module(name string) Field {
	return Field{Key: "module", Value: name}
}

// Err attaches the error text.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Emitter writes one JSON object per line for every work item state
// transition. The fixed keys are timestamp, transcript_id and status;
// extra fields are flattened into the same object.
type Emitter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewEmitter writes events to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w), now: time.Now}
}

// Emit records a single state transition.
func (e *Emitter) Emit(transcriptID string, status domain.Status, fields ...Field) {
	entry := map[string]any{
		"timestamp":     e.now().Format(time.RFC3339Nano),
		"transcript_id": transcriptID,
		"status":        string(status),
	}
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		entry[f.Key] = f.Value
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(entry)
}
