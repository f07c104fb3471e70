package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"TranscriptPipeline/internal/domain"
	"TranscriptPipeline/internal/logging"
	"TranscriptPipeline/internal/ports"
	"TranscriptPipeline/internal/retry"
)

// Store reads the full transcript record from the warehouse. The query is
// the fixed transcripts/calls/accounts join keyed by transcript id.
type Store struct {
	db     *sql.DB
	policy retry.Policy
	logger *slog.Logger
}

var _ ports.Fetcher = (*Store)(nil)

// NewStore wires a sql.DB implementation.
func NewStore(db *sql.DB, policy retry.Policy, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{db: db, policy: policy, logger: logger}
}

// FetchTranscript returns the record for the identifier, or nil when no
// usable row exists. Query errors are retried under the stage policy.
func (s *Store) FetchTranscript(ctx context.Context, transcriptID string) (*domain.TranscriptRecord, error) {
	return retry.Do(ctx, s.policy, func() (*domain.TranscriptRecord, error) {
		return s.fetchOnce(ctx, transcriptID)
	})
}

func (s *Store) fetchOnce(ctx context.Context, transcriptID string) (*domain.TranscriptRecord, error) {
	query, args, err := buildFetchQuery(transcriptID)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build query: %w", err))
	}

	var rec domain.TranscriptRecord
	row := s.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(
		&rec.TranscriptID,
		&rec.AccountName,
		&rec.AccountNumber,
		&rec.SpeakerName,
		&rec.SpeakerEmail,
		&rec.CSEmail,
		&rec.AMEmail,
		&rec.TranscriptText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("no row for transcript", "transcript_id", transcriptID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query transcript %s: %w", transcriptID, err)
	}

	if !rec.Complete() {
		s.logger.Warn("missing critical fields for transcript", "transcript_id", transcriptID)
		return nil, nil
	}

	return &rec, nil
}

func buildFetchQuery(transcriptID string) (string, []any, error) {
	return sq.Select(
		"t.transcript_id",
		"a.account_name",
		"a.account_number",
		"c.speaker_name",
		"c.speaker_email",
		"a.cs_email",
		"a.am_email",
		"t.transcript_text",
	).
		From("transcripts t").
		Join("calls c ON t.call_id = c.call_id").
		Join("accounts a ON c.account_id = a.account_id").
		Where(sq.Eq{"t.transcript_id": transcriptID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}
