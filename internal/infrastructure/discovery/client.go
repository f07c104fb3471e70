package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"TranscriptPipeline/internal/logging"
	"TranscriptPipeline/internal/ports"
)

// Client asks the discovery API for transcripts created inside a window.
// The window bounds travel as epoch-millisecond query parameters.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Discovery = (*Client)(nil)

// NewClient builds a discovery client.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// NewTranscripts returns the identifiers of transcripts created between
// from and to. Failures are returned as-is; the poller degrades them to an
// empty cycle.
func (c *Client) NewTranscripts(ctx context.Context, from, to time.Time) ([]string, error) {
	endpoint := c.baseURL + "/v2/calls/transcripts"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	q := url.Values{}
	q.Set("fromDateTime", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("toDateTime", strconv.FormatInt(to.UnixMilli(), 10))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll transcripts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("discovery error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var body struct {
		Transcripts []struct {
			TranscriptID string `json:"transcript_id"`
		} `json:"transcripts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	ids := make([]string, 0, len(body.Transcripts))
	for _, t := range body.Transcripts {
		if t.TranscriptID != "" {
			ids = append(ids, t.TranscriptID)
		}
	}

	c.logger.Debug("discovery cycle completed", "count", len(ids))
	return ids, nil
}
