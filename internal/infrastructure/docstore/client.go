// Package docstore maintains the two per-account documents: a summary
// document whose content is replaced on every call and a log document that
// grows by one timestamped entry per call. Folders and documents are
// located-or-created by name, which makes the whole update idempotent.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"TranscriptPipeline/internal/domain"
	"TranscriptPipeline/internal/logging"
	"TranscriptPipeline/internal/ports"
	"TranscriptPipeline/internal/retry"
)

const (
	kindFolder   = "folder"
	kindDocument = "document"

	summaryDocName = "Call Summary"
	logDocName     = "Summary Log"
)

// Client implements ports.Documenter against the document store API.
type Client struct {
	baseURL    string
	apiKey     string
	rootFolder string
	policy     retry.Policy
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

var _ ports.Documenter = (*Client)(nil)

// Options carries the wiring for NewClient.
type Options struct {
	BaseURL    string
	APIKey     string
	RootFolder string
	Policy     retry.Policy
	Logger     *slog.Logger
}

// NewClient builds a document store client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		rootFolder: opts.RootFolder,
		policy:     opts.Policy,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     opts.Logger,
		now:        time.Now,
	}
	if c.rootFolder == "" {
		c.rootFolder = "Clients"
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// UpdateDocuments replaces the account's summary document with the new
// summary and appends a timestamped entry to the log document. There is no
// absent-data outcome; any failure is an error for the requeue policy.
func (c *Client) UpdateDocuments(ctx context.Context, accountName, summary string) (domain.DocumentLinks, error) {
	return retry.Do(ctx, c.policy, func() (domain.DocumentLinks, error) {
		return c.updateOnce(ctx, accountName, summary)
	})
}

func (c *Client) updateOnce(ctx context.Context, accountName, summary string) (domain.DocumentLinks, error) {
	rootID, err := c.ensureFile(ctx, c.rootFolder, kindFolder, "")
	if err != nil {
		return domain.DocumentLinks{}, fmt.Errorf("ensure root folder: %w", err)
	}

	accountID, err := c.ensureFile(ctx, accountName, kindFolder, rootID)
	if err != nil {
		return domain.DocumentLinks{}, fmt.Errorf("ensure account folder: %w", err)
	}

	summaryID, err := c.ensureFile(ctx, summaryDocName, kindDocument, accountID)
	if err != nil {
		return domain.DocumentLinks{}, fmt.Errorf("ensure summary document: %w", err)
	}
	if err := c.replaceContent(ctx, summaryID, summary); err != nil {
		return domain.DocumentLinks{}, fmt.Errorf("replace summary content: %w", err)
	}

	logID, err := c.ensureFile(ctx, logDocName, kindDocument, accountID)
	if err != nil {
		return domain.DocumentLinks{}, fmt.Errorf("ensure log document: %w", err)
	}
	entry := fmt.Sprintf("\n--- %s ---\n%s\n", c.now().Format("2006-01-02 15:04"), summary)
	if err := c.appendContent(ctx, logID, entry); err != nil {
		return domain.DocumentLinks{}, fmt.Errorf("append log entry: %w", err)
	}

	c.logger.Info("documents updated", "account_name", accountName)
	return domain.DocumentLinks{
		SummaryURL: c.documentURL(summaryID),
		LogURL:     c.documentURL(logID),
	}, nil
}

// ensureFile locates a file by name, kind and parent, creating it when
// absent.
func (c *Client) ensureFile(ctx context.Context, name, kind, parentID string) (string, error) {
	var found struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	query := map[string]any{"name": name, "kind": kind, "parentId": parentID}
	if err := c.post(ctx, "/files/search", query, &found); err != nil {
		return "", fmt.Errorf("search %s %q: %w", kind, name, err)
	}
	if len(found.Files) > 0 {
		return found.Files[0].ID, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/files", query, &created); err != nil {
		return "", fmt.Errorf("create %s %q: %w", kind, name, err)
	}
	c.logger.Info("created file", "kind", kind, "name", name)
	return created.ID, nil
}

// replaceContent deletes the document body and inserts the new text.
func (c *Client) replaceContent(ctx context.Context, docID, content string) error {
	endIndex, err := c.endIndex(ctx, docID)
	if err != nil {
		return err
	}

	var requests []map[string]any
	if endIndex > 1 {
		requests = append(requests, map[string]any{
			"deleteContentRange": map[string]any{
				"range": map[string]any{"startIndex": 1, "endIndex": endIndex},
			},
		})
	}
	requests = append(requests, map[string]any{
		"insertText": map[string]any{
			"location": map[string]any{"index": 1},
			"text":     content,
		},
	})

	return c.batchUpdate(ctx, docID, requests)
}

// appendContent inserts text at the true end offset fetched beforehand.
func (c *Client) appendContent(ctx context.Context, docID, content string) error {
	endIndex, err := c.endIndex(ctx, docID)
	if err != nil {
		return err
	}

	return c.batchUpdate(ctx, docID, []map[string]any{{
		"insertText": map[string]any{
			"location": map[string]any{"index": endIndex},
			"text":     content,
		},
	}})
}

func (c *Client) endIndex(ctx context.Context, docID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents/"+docID, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get document %s: %w", docID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get document %s: %s", docID, resp.Status)
	}

	var doc struct {
		EndIndex int `json:"endIndex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode document %s: %w", docID, err)
	}
	if doc.EndIndex < 1 {
		return 1, nil
	}
	return doc.EndIndex, nil
}

func (c *Client) batchUpdate(ctx context.Context, docID string, requests []map[string]any) error {
	return c.post(ctx, "/documents/"+docID+"/batchUpdate", map[string]any{"requests": requests}, nil)
}

func (c *Client) documentURL(docID string) string {
	return c.baseURL + "/documents/" + docID
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("docstore error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
