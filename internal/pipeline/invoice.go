package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/attachment"
	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/ledger"
	"github.com/nhle/mailagent/internal/logging"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/message"
	"github.com/nhle/mailagent/internal/metrics"
)

// InvoiceConfig wires an InvoicePipeline.
type InvoiceConfig struct {
	Open   Opener
	Sink   attachment.Sink
	Ledger Ledger

	// Journal is optional.
	Journal Journal

	// DaysBack sizes the search window; negative values mean today only.
	DaysBack int

	// Recipient is recorded as TO_EMAIL when a message has no To header,
	// normally the mailbox username.
	Recipient string

	// Backend labels the storage metrics.
	Backend string

	Logger   *zap.Logger
	Now      func() time.Time
	NewRunID func() string
}

// InvoicePipeline stores every attachment of recent unread mail and
// records each one in the ledger.
type InvoicePipeline struct {
	open      Opener
	sink      attachment.Sink
	ledger    Ledger
	daysBack  int
	recipient string
	backend   string
	env       runEnv
}

// NewInvoicePipeline creates an ingestion pipeline.
func NewInvoicePipeline(cfg InvoiceConfig) *InvoicePipeline {
	backend := cfg.Backend
	if backend == "" {
		backend = "default"
	}
	return &InvoicePipeline{
		open:      cfg.Open,
		sink:      cfg.Sink,
		ledger:    cfg.Ledger,
		daysBack:  cfg.DaysBack,
		recipient: cfg.Recipient,
		backend:   backend,
		env:       newRunEnv(cfg.Logger, cfg.Journal, cfg.Now, cfg.NewRunID),
	}
}

// Window returns the search window the pipeline uses.
func (p *InvoicePipeline) Window() mailbox.Window {
	return mailbox.Window{Mode: mailbox.SinceUnseenMode, DaysBack: p.daysBack}
}

// Run scans the mailbox window and ingests attachments. It always returns
// a summary; only connection and search failures abort the run, and the
// mailbox session is closed before Run returns.
func (p *InvoicePipeline) Run(ctx context.Context) *RunSummary {
	started := p.env.now()
	summary := newRunSummary(p.env.newRunID())
	log := logging.WithRun(p.env.logger, metrics.PipelineInvoice, summary.RunID)

	defer func() {
		p.finish(ctx, log, summary, started)
	}()

	box, err := p.open(ctx, false)
	if err != nil {
		metrics.IncrementError(metrics.PipelineInvoice, metrics.KindConnection)
		log.Error("mailbox connection failed", zap.Error(err))
		summary.abort(fmt.Sprintf("mailbox connection failed: %v", err))
		return summary
	}
	defer closeMailbox(box, log)

	window := p.Window()
	ids, err := box.Search(window)
	if err != nil {
		metrics.IncrementError(metrics.PipelineInvoice, metrics.KindSearch)
		log.Error("mailbox search failed", zap.Stringer("window", window), zap.Error(err))
		summary.abort(fmt.Sprintf("mailbox search failed: %v", err))
		return summary
	}
	log.Info("mailbox search complete", zap.Stringer("window", window), zap.Int("matches", len(ids)))

	for _, id := range ids {
		raw, err := box.Fetch(id)
		if err != nil {
			summary.Errors++
			metrics.IncrementError(metrics.PipelineInvoice, metrics.KindFetch)
			log.Warn("fetch failed", zap.String("message_id", id), zap.Error(err))
			continue
		}
		summary.EmailsScanned++
		metrics.IncrementEmailsScanned(metrics.PipelineInvoice)

		env := message.Decode(id, raw)
		logDecodeProblems(log, metrics.PipelineInvoice, env)

		for _, part := range env.Attachments {
			p.ingest(ctx, log, summary, env, part)
		}
	}

	return summary
}

// ingest stores one attachment and, once stored, records it in the ledger.
// A ledger failure counts as an error but does not revoke the upload.
func (p *InvoicePipeline) ingest(ctx context.Context, log *zap.Logger, summary *RunSummary, env *message.Envelope, part message.AttachmentPart) {
	name := attachment.SanitizeName(env.ID, part.Filename)
	entry := journal.Attachment{
		RunID:      summary.RunID,
		MessageID:  env.ID,
		Filename:   part.Filename,
		StoredName: name,
		Size:       int64(len(part.Content)),
		CreatedAt:  p.env.now(),
	}

	if err := p.sink.Store(ctx, name, part.Content); err != nil {
		summary.Errors++
		metrics.IncrementError(metrics.PipelineInvoice, metrics.KindStorage)
		log.Warn("attachment upload failed",
			zap.String("message_id", env.ID),
			zap.String("attachment", name),
			zap.Error(err),
		)
		p.env.recordAttachment(ctx, log, entry)
		return
	}

	entry.Stored = true
	summary.AttachmentsUploaded++
	summary.InvoiceDetails = append(summary.InvoiceDetails, InvoiceDetail{
		From:     env.From,
		Subject:  env.Subject,
		Filename: part.Filename,
	})
	metrics.IncrementAttachmentsUploaded(p.backend)

	rec := ledger.NewRecord(env.ID, env.Sender(), p.recipientFor(env), env.Subject, name)
	entry.Recorded = p.ledger.Record(ctx, rec)
	if !entry.Recorded {
		summary.Errors++
		metrics.IncrementError(metrics.PipelineInvoice, metrics.KindLedger)
	}

	log.Debug("attachment ingested",
		zap.String("message_id", env.ID),
		zap.String("attachment", name),
		zap.Bool("recorded", entry.Recorded),
	)
	p.env.recordAttachment(ctx, log, entry)
}

func (p *InvoicePipeline) recipientFor(env *message.Envelope) string {
	if len(env.To) > 0 {
		return env.To[0]
	}
	return p.recipient
}

func (p *InvoicePipeline) finish(ctx context.Context, log *zap.Logger, summary *RunSummary, started time.Time) {
	finished := p.env.now()
	metrics.RecordRunDuration(metrics.PipelineInvoice, summary.Status, finished.Sub(started))

	log.Info("ingestion run finished",
		zap.String("status", summary.Status),
		zap.Int("emails_scanned", summary.EmailsScanned),
		zap.Int("attachments_uploaded", summary.AttachmentsUploaded),
		zap.Int("errors", summary.Errors),
	)

	p.env.recordRun(ctx, log, journal.Run{
		ID:                  summary.RunID,
		Pipeline:            metrics.PipelineInvoice,
		Status:              summary.Status,
		Message:             summary.Message,
		EmailsScanned:       summary.EmailsScanned,
		AttachmentsUploaded: summary.AttachmentsUploaded,
		Errors:              summary.Errors,
		StartedAt:           started,
		FinishedAt:          finished,
	})
}

// logDecodeProblems reports malformed parts. They were already defaulted
// by the decoder and do not count as run errors.
func logDecodeProblems(log *zap.Logger, pipeline string, env *message.Envelope) {
	for _, problem := range env.Problems {
		metrics.IncrementError(pipeline, metrics.KindDecode)
		log.Warn("message part could not be decoded",
			zap.String("message_id", problem.MessageID),
			zap.String("part", problem.Part),
			zap.Error(problem.Err),
		)
	}
}
