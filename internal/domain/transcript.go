package domain

// WorkItem is one transcript-processing unit flowing through the queue.
type WorkItem struct {
	ID      string
	Attempt int
}

// NewWorkItem wraps a freshly discovered transcript identifier.
func NewWorkItem(id string) WorkItem {
	return WorkItem{ID: id, Attempt: 1}
}

// Retry returns a copy of the item for the next pipeline attempt.
func (w WorkItem) Retry() WorkItem {
	return WorkItem{ID: w.ID, Attempt: w.Attempt + 1}
}

// TranscriptRecord is the data assembled by the fetch stage from the
// transcripts/calls/accounts join.
type TranscriptRecord struct {
	TranscriptID   string
	AccountName    string
	AccountNumber  string
	SpeakerName    string
	SpeakerEmail   string
	CSEmail        string
	AMEmail        string
	TranscriptText string
}

// Complete reports whether every mandatory field is populated. A record
// missing any field is treated as a fetch miss, not processed further.
func (r TranscriptRecord) Complete() bool {
	fields := []string{
		r.TranscriptID,
		r.AccountName,
		r.AccountNumber,
		r.SpeakerName,
		r.SpeakerEmail,
		r.CSEmail,
		r.AMEmail,
		r.TranscriptText,
	}
	for _, f := range fields {
		if f == "" {
			return false
		}
	}
	return true
}

// DocumentLinks locates the two per-account documents after a document
// stage run.
type DocumentLinks struct {
	SummaryURL string
	LogURL     string
}

// SendReceipts carries the per-role send confirmations from the mailer.
type SendReceipts struct {
	CS string
	AM string
}

// Status tags one state transition of a work item in the event log.
type Status string

const (
	StatusStarted         Status = "PROCESSING_STARTED"
	StatusFetchSuccess    Status = "FETCH_SUCCESS"
	StatusFailedFetch     Status = "FAILED_FETCH"
	StatusSummarySuccess  Status = "SUMMARY_SUCCESS"
	StatusFailedSummary   Status = "FAILED_SUMMARY"
	StatusDocsSuccess     Status = "DOCS_SUCCESS"
	StatusEmailSuccess    Status = "EMAIL_SUCCESS"
	StatusPipelineSuccess Status = "PIPELINE_SUCCESS"
	StatusPipelineError   Status = "PIPELINE_ERROR"
	StatusFailedFinal     Status = "PIPELINE_FAILED_FINAL"
)
