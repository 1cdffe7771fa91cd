package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"OpportunityMonitor/internal/config"
	"OpportunityMonitor/internal/digest"
	"OpportunityMonitor/internal/infrastructure/feed"
	"OpportunityMonitor/internal/infrastructure/mail"
	"OpportunityMonitor/internal/infrastructure/scheduler"
	"OpportunityMonitor/internal/infrastructure/storage"
	"OpportunityMonitor/internal/logging"
	"OpportunityMonitor/internal/ports"
	"OpportunityMonitor/internal/scanner"
	"OpportunityMonitor/internal/usecase"
	"OpportunityMonitor/pkg/logger"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	source   ports.EntrySource
	notifier ports.Notifier
	// preflight must pass before the ledger is touched.
	preflight func() error
	now       func() time.Time
}

// Option customises an Application.
type Option func(*Application)

// WithNotifier replaces the SMTP notifier.
func WithNotifier(n ports.Notifier) Option {
	return func(a *Application) {
		a.notifier = n
		a.preflight = nil
	}
}

// WithClock overrides the digest date source.
func WithClock(now func() time.Time) Option {
	return func(a *Application) { a.now = now }
}

// WithHTTPClient swaps the client used to fetch feeds.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Application) {
		a.source = newSource(a.cfg, client, a.logger)
	}
}

// RunOptions tweak a single run.
type RunOptions struct {
	// Output, when set, receives the rendered HTML instead of the mail relay.
	Output string
}

// Report summarises a finished run.
type Report struct {
	RunID     string
	Subject   string
	Items     int
	Delivered bool
	Output    string
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger, opts ...Option) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{
		cfg:    cfg,
		logger: baseLogger,
		notifier: mail.NewNotifier(mail.Settings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
		}),
		preflight: cfg.ValidateDelivery,
		now:       time.Now,
	}
	a.source = newSource(cfg, &http.Client{Timeout: cfg.Fetch.Timeout}, baseLogger)

	for _, opt := range opts {
		opt(a)
	}
	return a
}

func newSource(cfg config.Config, client *http.Client, log *slog.Logger) ports.EntrySource {
	registry := scanner.NewRegistry()
	registry.Register(feed.NewRSSScanner(client, cfg.Fetch.UserAgent))
	return feed.NewStrategySource(registry, cfg.Fetch.MaxEntries, cfg.Fetch.Concurrency, log.With("component", "source"))
}

// RunOnce fetches every source, records new matches in the ledger and
// delivers the digest (or writes it to opts.Output).
func (a *Application) RunOnce(ctx context.Context, opts RunOptions) (Report, error) {
	report := Report{RunID: uuid.NewString(), Output: opts.Output}
	log := a.logger.With("run_id", report.RunID)

	if opts.Output == "" && a.preflight != nil {
		if err := a.preflight(); err != nil {
			return report, eris.Wrap(err, "app: mail delivery is not configured")
		}
	}

	ledger, err := storage.OpenLedger(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return report, err
	}
	defer func() {
		if cerr := ledger.Close(); cerr != nil {
			log.Warn("close ledger", "error", cerr)
		}
	}()

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source: a.source,
		Ledger: ledger,
		Logger: log.With("component", "pipeline"),
	})

	started := time.Now()
	items, err := pipeline.Run(ctx, usecase.RunRequest{
		Sources:  a.cfg.DomainSources(),
		Policy:   a.cfg.Policy(),
		MaxItems: a.cfg.Email.MaxItems,
	})
	if err != nil {
		return report, err
	}
	report.Items = len(items)

	now := a.now().In(a.cfg.Scheduler.Location())
	report.Subject = digest.Subject(a.cfg.Email.SubjectPrefix, now)
	body, err := digest.Render(items, digest.Options{
		SubjectPrefix: a.cfg.Email.SubjectPrefix,
		MaxItems:      a.cfg.Email.MaxItems,
		Now:           now,
	})
	if err != nil {
		return report, err
	}

	if opts.Output != "" {
		if err := writeFile(opts.Output, body); err != nil {
			return report, err
		}
		log.Info("digest written", "path", opts.Output, "items", len(items), "took", time.Since(started))
		return report, nil
	}

	if len(items) == 0 && a.cfg.Email.SkipEmpty {
		log.Info("no new matches, digest skipped")
		return report, nil
	}

	if err := a.notifier.SendDigest(ctx, report.Subject, body); err != nil {
		return report, eris.Wrap(err, "app: deliver digest")
	}
	report.Delivered = true
	log.Info("digest sent", "items", len(items), "subject", report.Subject, "took", time.Since(started))
	return report, nil
}

// Watch runs the monitor on the configured cron schedule until ctx is cancelled.
func (a *Application) Watch(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(
		a.cfg.Scheduler.Cron,
		a.cfg.Scheduler.Location(),
		logger.NewCron(a.logger, "scheduler"),
	)
	if err := driver.Validate(); err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, func(ctx context.Context, _ time.Time) error {
		_, err := a.RunOnce(ctx, RunOptions{})
		return err
	}, a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("watching", "cron", a.cfg.Scheduler.Cron, "timezone", a.cfg.Scheduler.Location().String(), "next", driver.Next())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return sched.Stop(stopCtx)
}

func writeFile(path, body string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "app: create %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return eris.Wrapf(err, "app: write %s", path)
	}
	return nil
}
