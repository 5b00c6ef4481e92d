package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/credential"
	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/ledger"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
	"github.com/nhle/mailagent/internal/pipeline"
)

// App holds both pipelines wired from one AppConfig.
type App struct {
	Config   *model.AppConfig
	Logger   *zap.Logger
	Invoices *pipeline.InvoicePipeline
	Alerts   *pipeline.AlertPipeline

	// Journal is nil unless journal.path is configured.
	Journal *journal.SQLiteJournal
}

// SecretResolver returns explicit when set and otherwise looks key up.
type SecretResolver func(explicit, key string) (string, error)

type options struct {
	logger   *zap.Logger
	fs       afero.Fs
	resolve  SecretResolver
	opener   pipeline.Opener
	now      func() time.Time
	newRunID func() string
}

// Option customizes how an App is wired.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFs sets the filesystem used by the filesystem storage backend.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithSecretResolver replaces the keyring lookup for missing secrets.
func WithSecretResolver(resolve SecretResolver) Option {
	return func(o *options) { o.resolve = resolve }
}

// WithOpener replaces the IMAP session opener.
func WithOpener(open pipeline.Opener) Option {
	return func(o *options) { o.opener = open }
}

// WithClock overrides the clock used by both pipelines.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New validates cfg and wires the pipelines. Secrets missing from cfg are
// read from the system keyring.
func New(cfg *model.AppConfig, opts ...Option) (*App, error) {
	o := options{
		logger:   zap.NewNop(),
		fs:       afero.NewOsFs(),
		resolve:  credential.Resolve,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	open := o.opener
	if open == nil {
		creds, err := mailboxCredentials(cfg.Mailbox, o.resolve)
		if err != nil {
			return nil, err
		}
		open = pipeline.NewSessionOpener(creds,
			mailbox.WithDialTimeout(cfg.Mailbox.DialTimeout),
			mailbox.WithClock(o.now),
			mailbox.WithLogger(o.logger),
		)
	}

	sink, backend, err := buildSink(cfg.Storage, o.fs, o.resolve)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: o.logger}

	// j stays a nil interface when the journal is disabled.
	var j pipeline.Journal
	if cfg.Journal.Path != "" {
		a.Journal, err = journal.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		j = a.Journal
	}

	a.Invoices = pipeline.NewInvoicePipeline(pipeline.InvoiceConfig{
		Open: open,
		Sink: sink,
		Ledger: ledger.NewClient(ledger.Config{
			URL:     cfg.Ledger.URL,
			Timeout: cfg.Ledger.Timeout,
		}, o.logger),
		Journal:   j,
		DaysBack:  cfg.Ingest.DaysBack,
		Recipient: cfg.Mailbox.Username,
		Backend:   backend,
		Logger:    o.logger,
		Now:       o.now,
		NewRunID:  o.newRunID,
	})
	a.Alerts = pipeline.NewAlertPipeline(pipeline.AlertConfig{
		Open:       open,
		Classifier: pipeline.NewClassifier(cfg.Alerts.Keywords),
		Journal:    j,
		Logger:     o.logger,
		Now:        o.now,
		NewRunID:   o.newRunID,
	})

	return a, nil
}

// Close releases the journal, if one is open.
func (a *App) Close() error {
	if a.Journal == nil {
		return nil
	}
	err := a.Journal.Close()
	a.Journal = nil
	return err
}

// ErrNoJournal is returned when journal.path is not set.
var ErrNoJournal = errors.New("journal is not configured; set journal.path")
