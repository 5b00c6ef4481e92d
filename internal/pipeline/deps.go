package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/ledger"
	"github.com/nhle/mailagent/internal/mailbox"
)

// Mailbox is the part of a mailbox session a pipeline uses.
type Mailbox interface {
	Search(w mailbox.Window) ([]string, error)
	Fetch(id string) ([]byte, error)
	Close() error
}

// Opener opens a fresh mailbox session for one run. When peek is true,
// fetching a message must not mark it read.
type Opener func(ctx context.Context, peek bool) (Mailbox, error)

// Ledger records stored attachments in the external system of record.
type Ledger interface {
	Record(ctx context.Context, rec ledger.Record) bool
}

// Journal is the write side of the local run journal.
type Journal interface {
	RecordRun(ctx context.Context, run journal.Run) error
	RecordAttachment(ctx context.Context, a journal.Attachment) error
}

// NewSessionOpener returns an Opener that dials the given mailbox with a
// new IMAP session on every call.
func NewSessionOpener(creds mailbox.Credentials, opts ...mailbox.Option) Opener {
	return func(ctx context.Context, peek bool) (Mailbox, error) {
		if err := ctx.Err(); err != nil {
			return nil, &mailbox.ConnectionError{Host: creds.Host, Op: "open", Err: err}
		}
		sessionOpts := append([]mailbox.Option{}, opts...)
		sessionOpts = append(sessionOpts, mailbox.WithPeek(peek))
		session, err := mailbox.Open(creds, sessionOpts...)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// runEnv holds what both pipelines share for a single run.
type runEnv struct {
	logger   *zap.Logger
	journal  Journal
	now      func() time.Time
	newRunID func() string
}

func newRunEnv(logger *zap.Logger, j Journal, now func() time.Time, newRunID func() string) runEnv {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if newRunID == nil {
		newRunID = func() string { return uuid.New().String() }
	}
	return runEnv{logger: logger, journal: j, now: now, newRunID: newRunID}
}

// closeMailbox logs out; a logout failure is logged and never escalated.
func closeMailbox(box Mailbox, log *zap.Logger) {
	if err := box.Close(); err != nil {
		log.Warn("mailbox logout failed", zap.Error(err))
	}
}

func (e runEnv) recordRun(ctx context.Context, log *zap.Logger, run journal.Run) {
	if e.journal == nil {
		return
	}
	// The run outcome is journaled even when the caller's context is done.
	if err := e.journal.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("journal run write failed", zap.Error(err))
	}
}

func (e runEnv) recordAttachment(ctx context.Context, log *zap.Logger, a journal.Attachment) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordAttachment(context.WithoutCancel(ctx), a); err != nil {
		log.Warn("journal attachment write failed", zap.String("attachment", a.StoredName), zap.Error(err))
	}
}
