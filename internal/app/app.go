package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"TranscriptPipeline/internal/config"
	"TranscriptPipeline/internal/events"
	"TranscriptPipeline/internal/infrastructure/assistant"
	"TranscriptPipeline/internal/infrastructure/discovery"
	"TranscriptPipeline/internal/infrastructure/docstore"
	"TranscriptPipeline/internal/infrastructure/mailer"
	"TranscriptPipeline/internal/infrastructure/warehouse"
	"TranscriptPipeline/internal/logging"
	"TranscriptPipeline/internal/metrics"
	"TranscriptPipeline/internal/pipeline"
	"TranscriptPipeline/internal/poller"
	"TranscriptPipeline/internal/queue"
	"TranscriptPipeline/internal/retry"
	"TranscriptPipeline/pkg/console"
)

// Application wires configuration into the poller, the pipeline worker and
// the observability surfaces, and owns the drain-to-empty shutdown.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	queue   *queue.Queue
	poller  *poller.Poller
	runner  *pipeline.Runner
	metrics *metrics.Metrics
	closers []io.Closer
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	eventSink, err := app.openEventSink(cfg.Events.Path)
	if err != nil {
		return nil, err
	}
	emitter := events.NewEmitter(eventSink)

	app.metrics = metrics.New()
	app.queue = queue.New()

	policy := retry.Policy{
		MaxAttempts:  uint(cfg.Retry.MaxAttempts),
		InitialDelay: time.Duration(cfg.Retry.InitialDelaySeconds) * time.Second,
		MaxDelay:     time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
		Multiplier:   cfg.Retry.Multiplier,
	}

	db, err := sql.Open("postgres", cfg.Warehouse.DSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	app.closers = append(app.closers, db)

	fetcher := warehouse.NewStore(db, policy, baseLogger.With("component", "warehouse"))

	summarizer := assistant.NewClient(assistant.Options{
		BaseURL:      cfg.Assistant.BaseURL,
		APIKey:       cfg.Assistant.APIKey,
		AssistantID:  cfg.Assistant.AssistantID,
		Timeout:      cfg.Assistant.Timeout(),
		PollInterval: cfg.Assistant.PollInterval(),
		Policy:       policy,
		Logger:       baseLogger.With("component", "assistant"),
	})

	documenter := docstore.NewClient(docstore.Options{
		BaseURL:    cfg.DocStore.BaseURL,
		APIKey:     cfg.DocStore.APIKey,
		RootFolder: cfg.DocStore.RootFolder,
		Policy:     policy,
		Logger:     baseLogger.With("component", "docstore"),
	})

	dispatcher, err := mailer.NewDispatcher(mailer.Options{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Policy:   policy,
		Logger:   baseLogger.With("component", "mailer"),
	})
	if err != nil {
		return nil, err
	}

	app.poller = poller.New(poller.Deps{
		Queue:     app.queue,
		Discovery: discovery.NewClient(cfg.Discovery.BaseURL, cfg.Discovery.APIKey, baseLogger.With("component", "discovery")),
		RunHour:   cfg.Scheduler.RunHour,
		RunMinute: cfg.Scheduler.RunMinute,
		IdleSleep: cfg.Scheduler.IdleSleep(),
		Window:    cfg.Scheduler.Window(),
		Logger:    baseLogger.With("component", "poller"),
	})

	app.runner = pipeline.New(pipeline.Deps{
		Queue:      app.queue,
		Fetcher:    fetcher,
		Summarizer: summarizer,
		Documenter: documenter,
		Dispatcher: dispatcher,
		Metrics:    app.metrics,
		Events:     emitter,
		Logger:     baseLogger.With("component", "pipeline"),
		Formatter:  console.New(os.Stdout),
		MaxRetries: cfg.Pipeline.MaxRetries,
		PopTimeout: cfg.Pipeline.PopTimeout(),
	})

	return app, nil
}

// Run starts the metrics endpoint, the poller and the worker, then blocks
// until a termination signal arrives and the queue has fully drained.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := a.startMetricsServer()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.runner.Run(ctx)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown requested, draining queue")

	a.queue.Join()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("metrics server shutdown", "error", err)
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close resource", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}

func (a *Application) startMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("metrics server started", "port", a.cfg.Metrics.Port)
	return srv
}

func (a *Application) openEventSink(path string) (io.Writer, error) {
	if path == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	a.closers = append(a.closers, f)
	return f, nil
}
