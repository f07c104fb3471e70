package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"TranscriptPipeline/internal/retry"
)

// docstoreStub is an in-memory document store speaking the search/create/
// batchUpdate protocol. Content indices are 1-based like the real API.
type docstoreStub struct {
	mu      sync.Mutex
	nextID  int
	files   map[string]stubFile // id -> file
	content map[string]string   // id -> document text
}

type stubFile struct {
	name     string
	kind     string
	parentID string
}

func newDocstoreStub() *docstoreStub {
	return &docstoreStub{
		files:   make(map[string]stubFile),
		content: make(map[string]string),
	}
}

func (s *docstoreStub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /files/search", func(w http.ResponseWriter, r *http.Request) {
		var q stubQuery
		json.NewDecoder(r.Body).Decode(&q)

		s.mu.Lock()
		defer s.mu.Unlock()
		matches := []map[string]string{}
		for id, f := range s.files {
			if f.name == q.Name && f.kind == q.Kind && f.parentID == q.ParentID {
				matches = append(matches, map[string]string{"id": id})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"files": matches})
	})

	mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
		var q stubQuery
		json.NewDecoder(r.Body).Decode(&q)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID++
		id := fmt.Sprintf("file-%d", s.nextID)
		s.files[id] = stubFile{name: q.Name, kind: q.Kind, parentID: q.ParentID}
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	mux.HandleFunc("GET /documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		end := len(s.content[r.PathValue("id")]) + 1
		json.NewEncoder(w).Encode(map[string]int{"endIndex": end})
	})

	mux.HandleFunc("POST /documents/{id}/batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var body struct {
			Requests []struct {
				DeleteContentRange *struct {
					Range struct {
						StartIndex int `json:"startIndex"`
						EndIndex   int `json:"endIndex"`
					} `json:"range"`
				} `json:"deleteContentRange"`
				InsertText *struct {
					Location struct {
						Index int `json:"index"`
					} `json:"location"`
					Text string `json:"text"`
				} `json:"insertText"`
			} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, req := range body.Requests {
			if req.DeleteContentRange != nil {
				text := s.content[id]
				start := req.DeleteContentRange.Range.StartIndex - 1
				end := req.DeleteContentRange.Range.EndIndex - 1
				s.content[id] = text[:start] + text[end:]
			}
			if req.InsertText != nil {
				text := s.content[id]
				at := req.InsertText.Location.Index - 1
				s.content[id] = text[:at] + req.InsertText.Text + text[at:]
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

type stubQuery struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	ParentID string `json:"parentId"`
}

func (s *docstoreStub) documentByName(name string) (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.files {
		if f.name == name && f.kind == kindDocument {
			return id, s.content[id], true
		}
	}
	return "", "", false
}

func (s *docstoreStub) fileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func newTestClient(serverURL string) *Client {
	c := NewClient(Options{
		BaseURL:    serverURL,
		APIKey:     "test-key",
		RootFolder: "Clients",
		Policy: retry.Policy{
			MaxAttempts:  1,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1,
		},
	})
	c.now = func() time.Time { return time.Date(2026, 3, 1, 7, 15, 0, 0, time.UTC) }
	return c
}

func TestUpdateDocumentsCreatesHierarchy(t *testing.T) {
	t.Parallel()

	stub := newDocstoreStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	links, err := newTestClient(server.URL).UpdateDocuments(context.Background(), "Acme", "First summary.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Root folder, account folder, summary doc, log doc.
	if got := stub.fileCount(); got != 4 {
		t.Fatalf("file count = %d, want 4", got)
	}

	summaryID, summaryContent, ok := stub.documentByName(summaryDocName)
	if !ok {
		t.Fatal("summary document was not created")
	}
	if summaryContent != "First summary." {
		t.Fatalf("summary content = %q", summaryContent)
	}

	logID, logContent, ok := stub.documentByName(logDocName)
	if !ok {
		t.Fatal("log document was not created")
	}
	if !strings.Contains(logContent, "--- 2026-03-01 07:15 ---") || !strings.Contains(logContent, "First summary.") {
		t.Fatalf("log content = %q", logContent)
	}

	if links.SummaryURL != server.URL+"/documents/"+summaryID {
		t.Fatalf("summary url = %q", links.SummaryURL)
	}
	if links.LogURL != server.URL+"/documents/"+logID {
		t.Fatalf("log url = %q", links.LogURL)
	}
}

func TestUpdateDocumentsIsIdempotentOnStructure(t *testing.T) {
	t.Parallel()

	stub := newDocstoreStub()
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	if _, err := c.UpdateDocuments(ctx, "Acme", "First summary."); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if _, err := c.UpdateDocuments(ctx, "Acme", "Second summary."); err != nil {
		t.Fatalf("second update: %v", err)
	}

	// No duplicate folders or documents on the second pass.
	if got := stub.fileCount(); got != 4 {
		t.Fatalf("file count = %d, want 4", got)
	}

	// The summary document is replaced, the log document accumulates.
	_, summaryContent, _ := stub.documentByName(summaryDocName)
	if summaryContent != "Second summary." {
		t.Fatalf("summary content = %q, want replacement only", summaryContent)
	}

	_, logContent, _ := stub.documentByName(logDocName)
	if strings.Count(logContent, "--- 2026-03-01 07:15 ---") != 2 {
		t.Fatalf("log content = %q, want two entries", logContent)
	}
	if !strings.Contains(logContent, "First summary.") || !strings.Contains(logContent, "Second summary.") {
		t.Fatalf("log content = %q, want both summaries", logContent)
	}
}

func TestUpdateDocumentsPropagatesServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).UpdateDocuments(context.Background(), "Acme", "s"); err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
}
