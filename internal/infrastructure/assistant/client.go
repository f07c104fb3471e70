// Package assistant talks to the asynchronous summarization API: submit the
// transcript context, poll the run until a terminal state, then fetch the
// emitted text.
package assistant

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

// Client implements ports.Summarizer against the job-style assistant API.
type Client struct {
	baseURL      string
	apiKey       string
	assistantID  string
	timeout      time.Duration
	pollInterval time.Duration
	policy       retry.Policy
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Summarizer = (*Client)(nil)

// Options carries the wiring for NewClient.
type Options struct {
	BaseURL      string
	APIKey       string
	AssistantID  string
	Timeout      time.Duration
	PollInterval time.Duration
	Policy       retry.Policy
	Logger       *slog.Logger
}

// NewClient builds an assistant client, applying defaults for the wait
// bounds.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		assistantID:  opts.AssistantID,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		policy:       opts.Policy,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = 120 * time.Second
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Summarize submits the record and waits for the summary text. An empty
// string with a nil error covers the expected failure modes: terminal run
// failure, wait timeout, or a whitespace-only response.
func (c *Client) Summarize(ctx context.Context, record *domain.TranscriptRecord) (string, error) {
	return retry.Do(ctx, c.policy, func() (string, error) {
		return c.summarizeOnce(ctx, record)
	})
}

func (c *Client) summarizeOnce(ctx context.Context, record *domain.TranscriptRecord) (string, error) {
	var thread struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/threads", map[string]any{}, &thread); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	message := map[string]any{
		"role":    "user",
		"content": buildPrompt(record),
	}
	if err := c.post(ctx, "/threads/"+thread.ID+"/messages", message, nil); err != nil {
		return "", fmt.Errorf("add message: %w", err)
	}

	var run struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/threads/"+thread.ID+"/runs", map[string]any{"assistant_id": c.assistantID}, &run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	for time.Now().Before(deadline) {
		var status struct {
			Status string `json:"status"`
		}
		if err := c.get(ctx, "/threads/"+thread.ID+"/runs/"+run.ID, &status); err != nil {
			return "", fmt.Errorf("retrieve run: %w", err)
		}

		switch status.Status {
		case "completed":
			return c.fetchSummary(ctx, thread.ID, record.TranscriptID)
		case "failed", "cancelled", "expired":
			c.logger.Warn("assistant run ended without summary",
				"transcript_id", record.TranscriptID,
				"run_status", status.Status)
			return "", nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	c.logger.Warn("timeout waiting for assistant response",
		"transcript_id", record.TranscriptID)
	return "", nil
}

func (c *Client) fetchSummary(ctx context.Context, threadID, transcriptID string) (string, error) {
	var messages struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/threads/"+threadID+"/messages", &messages); err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}

	for _, msg := range messages.Data {
		if msg.Role != "assistant" || len(msg.Content) == 0 {
			continue
		}
		text := strings.TrimSpace(msg.Content[0].Text.Value)
		if text == "" {
			c.logger.Warn("empty assistant response", "transcript_id", transcriptID)
			return "", nil
		}
		return text, nil
	}

	c.logger.Warn("no assistant message in thread", "transcript_id", transcriptID)
	return "", nil
}

func buildPrompt(record *domain.TranscriptRecord) string {
	var b strings.Builder
	b.WriteString("Please analyze this call transcript and provide a comprehensive summary.\n\n")
	b.WriteString("Account Information:\n")
	fmt.Fprintf(&b, "- Account Name: %s\n", record.AccountName)
	fmt.Fprintf(&b, "- Account Number: %s\n", record.AccountNumber)
	fmt.Fprintf(&b, "- Speaker: %s (%s)\n\n", record.SpeakerName, record.SpeakerEmail)
	b.WriteString("Transcript:\n")
	b.WriteString(record.TranscriptText)
	b.WriteString("\n\nPlease provide a detailed summary including:\n")
	b.WriteString("1. Key discussion points\n")
	b.WriteString("2. Action items\n")
	b.WriteString("3. Customer concerns or requests\n")
	b.WriteString("4. Next steps\n")
	return b.String()
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), v)
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, nil, v)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
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
		return fmt.Errorf("assistant error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
