package ports

import (
	"context"
	"time"

	"TranscriptPipeline/internal/domain"
)

// Discovery lists identifiers of transcripts created inside a time window.
type Discovery interface {
	NewTranscripts(ctx context.Context, from, to time.Time) ([]string, error)
}

// Fetcher assembles the full transcript record for an identifier.
// A nil record with a nil error means no usable data exists.
type Fetcher interface {
	FetchTranscript(ctx context.Context, transcriptID string) (*domain.TranscriptRecord, error)
}

// Summarizer produces the summary text for a fetched record.
// An empty string with a nil error means the summarization yielded nothing.
type Summarizer interface {
	Summarize(ctx context.Context, record *domain.TranscriptRecord) (string, error)
}

// Documenter updates the per-account summary and log documents.
type Documenter interface {
	UpdateDocuments(ctx context.Context, accountName, summary string) (domain.DocumentLinks, error)
}

// Dispatcher delivers the templated notification mails to both recipient roles.
type Dispatcher interface {
	SendSummaries(ctx context.Context, record *domain.TranscriptRecord, summary string, links domain.DocumentLinks) (domain.SendReceipts, error)
}
