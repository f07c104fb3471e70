// Package poller discovers newly available transcripts on a daily schedule
// and feeds unseen identifiers into the work queue.
package poller

import (
	"context"
	"log/slog"
	"time"

	"TranscriptPipeline/internal/domain"
	"TranscriptPipeline/internal/logging"
	"TranscriptPipeline/internal/ports"
	"TranscriptPipeline/internal/queue"
)

// Deps wires the poller's collaborators.
type Deps struct {
	Queue     *queue.Queue
	Discovery ports.Discovery
	RunHour   int
	RunMinute int
	IdleSleep time.Duration
	Window    time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

// Poller fires once per day at the configured hour:minute. Identifiers
// already enqueued during this process's lifetime are skipped; the seen set
// is not persisted, so a restart may reprocess items still inside the
// discovery window. That overlap is tolerated by design.
type Poller struct {
	queue     *queue.Queue
	discovery ports.Discovery
	seen      map[string]struct{}
	runHour   int
	runMinute int
	idleSleep time.Duration
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New builds a poller from Deps, applying defaults for optional fields.
func New(deps Deps) *Poller {
	p := &Poller{
		queue:     deps.Queue,
		discovery: deps.Discovery,
		seen:      make(map[string]struct{}),
		runHour:   deps.RunHour,
		runMinute: deps.RunMinute,
		idleSleep: deps.IdleSleep,
		window:    deps.Window,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if p.idleSleep <= 0 {
		p.idleSleep = 300 * time.Second
	}
	if p.window <= 0 {
		p.window = 24 * time.Hour
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// NextRunAt computes the next scheduled firing at hour:minute relative to
// now: today when now is still before the scheduled time, else tomorrow.
func NextRunAt(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Run executes the schedule until ctx is cancelled. After each firing the
// next run advances by exactly one day rather than being recomputed from
// the wall clock, so a delayed start does not compound drift.
func (p *Poller) Run(ctx context.Context) {
	next := NextRunAt(p.now(), p.runHour, p.runMinute)
	p.logger.Info("poller started", "next_run", next)

	for {
		now := p.now()
		if now.Before(next) {
			if !p.sleepFor(ctx, min(next.Sub(now), p.idleSleep)) {
				p.logger.Info("poller stopped")
				return
			}
			continue
		}

		p.cycle(ctx, now)
		next = next.Add(24 * time.Hour)
	}
}

// sleepFor waits in a single bounded increment, returning false when
// shutdown was requested.
func (p *Poller) sleepFor(ctx context.Context, d time.Duration) bool {
	if d < time.Second {
		d = time.Second
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// cycle performs one discovery pass. A failed discovery call degrades to an
// empty result; the next scheduled run retries naturally.
func (p *Poller) cycle(ctx context.Context, now time.Time) {
	ids, err := p.discovery.NewTranscripts(ctx, now.Add(-p.window), now)
	if err != nil {
		p.logger.Error("discovery poll failed", "error", err)
		return
	}

	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := p.seen[id]; ok {
			continue
		}
		p.seen[id] = struct{}{}
		p.queue.Push(domain.NewWorkItem(id))
		p.logger.Info("new transcript detected",
			"transcript_id", id,
			"discovered_at", now,
			"status", "NEW")
	}
}
