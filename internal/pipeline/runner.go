// Package pipeline drives one work item at a time through the four stages
// in fixed order and applies the item-level retry/requeue policy.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"TranscriptPipeline/internal/domain"
	"TranscriptPipeline/internal/events"
	"TranscriptPipeline/internal/logging"
	"TranscriptPipeline/internal/metrics"
	"TranscriptPipeline/internal/ports"
	"TranscriptPipeline/internal/queue"
	"TranscriptPipeline/pkg/console"
)

// Deps wires the runner's collaborators.
type Deps struct {
	Queue      *queue.Queue
	Fetcher    ports.Fetcher
	Summarizer ports.Summarizer
	Documenter ports.Documenter
	Dispatcher ports.Dispatcher
	Metrics    *metrics.Metrics
	Events     *events.Emitter
	Logger     *slog.Logger
	Formatter  console.Formatter
	ConsoleOut io.Writer
	MaxRetries int
	PopTimeout time.Duration
	Now        func() time.Time
}

// Runner is the single pipeline worker. Stage calls for one item are
// strictly sequential; there is at most one in-flight execution at a time.
type Runner struct {
	queue      *queue.Queue
	fetcher    ports.Fetcher
	summarizer ports.Summarizer
	documenter ports.Documenter
	dispatcher ports.Dispatcher
	metrics    *metrics.Metrics
	events     *events.Emitter
	logger     *slog.Logger
	formatter  console.Formatter
	consoleOut io.Writer
	maxRetries int
	popTimeout time.Duration
	now        func() time.Time
}

// New builds a runner from Deps, applying defaults for optional fields.
func New(deps Deps) *Runner {
	r := &Runner{
		queue:      deps.Queue,
		fetcher:    deps.Fetcher,
		summarizer: deps.Summarizer,
		documenter: deps.Documenter,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		events:     deps.Events,
		logger:     deps.Logger,
		formatter:  deps.Formatter,
		consoleOut: deps.ConsoleOut,
		maxRetries: deps.MaxRetries,
		popTimeout: deps.PopTimeout,
		now:        deps.Now,
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.formatter == nil {
		r.formatter = console.Nop()
	}
	if r.consoleOut == nil {
		r.consoleOut = os.Stdout
	}
	if r.maxRetries <= 0 {
		r.maxRetries = 3
	}
	if r.popTimeout <= 0 {
		r.popTimeout = 5 * time.Second
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run consumes the queue until shutdown is requested and every outstanding
// item has completed. In-flight work runs under a non-cancellable context
// so a termination signal never interrupts an external call mid-stage.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("pipeline worker started")

	for ctx.Err() == nil || r.queue.Outstanding() > 0 {
		r.metrics.QueueDepth.Set(float64(r.queue.Len()))

		item, ok := r.queue.Pop(r.popTimeout)
		if !ok {
			continue
		}

		r.Process(context.WithoutCancel(ctx), item)
		r.queue.Done()
	}

	r.logger.Info("pipeline worker stopped")
}

// Process drives one attempt for one item through the whole pipeline and
// returns whether it reached terminal success. Absent-data outcomes fail
// the item without requeue; errors requeue until the attempt bound.
func (r *Runner) Process(ctx context.Context, item domain.WorkItem) bool {
	start := r.now()
	logger := r.logger.With(
		"transcript_id", item.ID,
		"attempt", item.Attempt,
		"request_id", uuid.NewString(),
	)

	r.metrics.InFlight.Inc()
	defer r.metrics.InFlight.Dec()

	r.events.Emit(item.ID, domain.StatusStarted, events.F("attempt", item.Attempt))

	ok, err := r.runStages(ctx, logger, item, start)
	if err == nil {
		return ok
	}

	logger.Error("pipeline attempt failed", "error", err)
	r.print(console.Failure, fmt.Sprintf("[ERROR] transcript %s: %v", item.ID, err))
	r.events.Emit(item.ID, domain.StatusPipelineError,
		events.Err(err), events.F("attempt", item.Attempt))
	r.metrics.RecordError("runner", "general")

	if item.Attempt < r.maxRetries {
		r.queue.Push(item.Retry())
		logger.Info("requeued transcript for retry", "next_attempt", item.Attempt+1)
	} else {
		logger.Error("max retries exceeded for transcript")
		r.events.Emit(item.ID, domain.StatusFailedFinal,
			events.F("max_attempts", item.Attempt))
	}
	return false
}

func (r *Runner) runStages(ctx context.Context, logger *slog.Logger, item domain.WorkItem, start time.Time) (bool, error) {
	r.print(console.Info, fmt.Sprintf("[FETCH] fetching data for transcript %s", item.ID))
	record, err := r.fetcher.FetchTranscript(ctx, item.ID)
	if err != nil {
		return false, fmt.Errorf("fetch transcript: %w", err)
	}
	if record == nil {
		logger.Warn("no data found for transcript")
		r.events.Emit(item.ID, domain.StatusFailedFetch, events.Module("fetcher"))
		r.metrics.RecordError("fetcher", "no_data")
		return false, nil
	}
	r.events.Emit(item.ID, domain.StatusFetchSuccess, events.Module("fetcher"),
		events.F("account_name", record.AccountName))
	r.print(console.Success, fmt.Sprintf("[FETCH] fetched data for account %q", record.AccountName))

	r.print(console.Info, "[ASSISTANT] requesting transcript summary")
	summary, err := r.summarizer.Summarize(ctx, record)
	if err != nil {
		return false, fmt.Errorf("summarize transcript: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		logger.Warn("no summary produced for transcript")
		r.events.Emit(item.ID, domain.StatusFailedSummary, events.Module("assistant"))
		r.metrics.RecordError("assistant", "no_summary")
		return false, nil
	}
	r.events.Emit(item.ID, domain.StatusSummarySuccess, events.Module("assistant"))
	r.print(console.Success, "[ASSISTANT] received summary")

	r.print(console.Info, fmt.Sprintf("[DOCS] updating documents for account %q", record.AccountName))
	links, err := r.documenter.UpdateDocuments(ctx, record.AccountName, summary)
	if err != nil {
		return false, fmt.Errorf("update documents: %w", err)
	}
	r.events.Emit(item.ID, domain.StatusDocsSuccess, events.Module("docstore"),
		events.F("summary_doc_url", links.SummaryURL),
		events.F("log_doc_url", links.LogURL))
	r.print(console.Success, "[DOCS] documents updated")

	r.print(console.Info, "[MAIL] sending CS and AM notification emails")
	receipts, err := r.dispatcher.SendSummaries(ctx, record, summary, links)
	if err != nil {
		return false, fmt.Errorf("send summaries: %w", err)
	}
	r.events.Emit(item.ID, domain.StatusEmailSuccess, events.Module("mailer"),
		events.F("cs_status", receipts.CS),
		events.F("am_status", receipts.AM))
	r.print(console.Success, "[MAIL] emails sent")

	elapsed := r.now().Sub(start).Seconds()
	r.metrics.ProcessingTime.Observe(elapsed)
	r.metrics.Success.Inc()
	r.events.Emit(item.ID, domain.StatusPipelineSuccess,
		events.F("processing_time_seconds", elapsed))
	logger.Info("transcript processed", "processing_time_seconds", elapsed)
	r.print(console.Final, fmt.Sprintf("[PIPELINE] processed transcript %s in %.1fs", item.ID, elapsed))

	return true, nil
}

func (r *Runner) print(level console.Level, text string) {
	fmt.Fprintln(r.consoleOut, r.formatter.Format(text, level))
}
