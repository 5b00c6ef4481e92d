package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/logging"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/message"
	"github.com/nhle/mailagent/internal/metrics"
)

// AlertConfig wires an AlertPipeline.
type AlertConfig struct {
	Open Opener

	// Classifier defaults to one built from DefaultKeywords.
	Classifier *Classifier

	// Journal is optional.
	Journal Journal

	Logger   *zap.Logger
	Now      func() time.Time
	NewRunID func() string
}

// AlertPipeline scans today's mail, read or unread, and reports messages
// that look like alerts. Messages are fetched without marking them read.
type AlertPipeline struct {
	open       Opener
	classifier *Classifier
	env        runEnv
}

// NewAlertPipeline creates an alert digest pipeline.
func NewAlertPipeline(cfg AlertConfig) *AlertPipeline {
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &AlertPipeline{
		open:       cfg.Open,
		classifier: classifier,
		env:        newRunEnv(cfg.Logger, cfg.Journal, cfg.Now, cfg.NewRunID),
	}
}

// Window returns the search window the pipeline uses.
func (p *AlertPipeline) Window() mailbox.Window {
	return mailbox.Window{Mode: mailbox.SinceMode}
}

// Run returns displayable text and never fails: connection and search
// failures, and an empty day, map to fixed messages.
func (p *AlertPipeline) Run(ctx context.Context) string {
	return ResultText(p.Collect(ctx))
}

// ResultText maps the outcome of Collect to the text Run displays.
func ResultText(digest *AlertDigest, err error) string {
	switch {
	case mailbox.IsSearchError(err):
		return SearchFailedMessage
	case err != nil:
		return ConnectionFailedMessage
	case digest.Matched == 0:
		return NoEmailsTodayMessage
	default:
		return digest.Render()
	}
}

// Collect scans and classifies today's mail. The returned error is a
// *mailbox.ConnectionError or a *mailbox.SearchError; per-message failures
// are counted in the digest instead.
func (p *AlertPipeline) Collect(ctx context.Context) (*AlertDigest, error) {
	started := p.env.now()
	digest := &AlertDigest{
		RunID:  p.env.newRunID(),
		Date:   started.Format("2006-01-02"),
		Alerts: []Alert{},
	}
	log := logging.WithRun(p.env.logger, metrics.PipelineAlerts, digest.RunID)

	var runErr error
	defer func() {
		p.finish(ctx, log, digest, started, runErr)
	}()

	box, err := p.open(ctx, true)
	if err != nil {
		if !mailbox.IsConnectionError(err) {
			err = &mailbox.ConnectionError{Op: "open", Err: err}
		}
		runErr = err
		metrics.IncrementError(metrics.PipelineAlerts, metrics.KindConnection)
		log.Error("mailbox connection failed", zap.Error(err))
		return nil, err
	}
	defer closeMailbox(box, log)

	window := p.Window()
	ids, err := box.Search(window)
	if err != nil {
		if !mailbox.IsSearchError(err) {
			err = &mailbox.SearchError{Window: window, Err: err}
		}
		runErr = err
		metrics.IncrementError(metrics.PipelineAlerts, metrics.KindSearch)
		log.Error("mailbox search failed", zap.Stringer("window", window), zap.Error(err))
		return nil, err
	}
	digest.Matched = len(ids)

	for _, id := range ids {
		raw, err := box.Fetch(id)
		if err != nil {
			digest.Errors++
			metrics.IncrementError(metrics.PipelineAlerts, metrics.KindFetch)
			log.Warn("fetch failed", zap.String("message_id", id), zap.Error(err))
			continue
		}
		digest.EmailsScanned++
		metrics.IncrementEmailsScanned(metrics.PipelineAlerts)

		env := message.Decode(id, raw)
		logDecodeProblems(log, metrics.PipelineAlerts, env)

		keyword, ok := p.classifier.Match(env.Subject, env.BodyText)
		if !ok {
			continue
		}
		digest.AlertCount++
		digest.Alerts = append(digest.Alerts, Alert{From: env.From, Subject: env.Subject, Keyword: keyword})
		metrics.IncrementAlerts()
	}

	return digest, nil
}

func (p *AlertPipeline) finish(ctx context.Context, log *zap.Logger, digest *AlertDigest, started time.Time, runErr error) {
	finished := p.env.now()
	status := StatusSuccess
	msg := ""
	if runErr != nil {
		status = StatusError
		msg = runErr.Error()
	}
	metrics.RecordRunDuration(metrics.PipelineAlerts, status, finished.Sub(started))

	log.Info("alert scan finished",
		zap.String("status", status),
		zap.Int("emails_scanned", digest.EmailsScanned),
		zap.Int("alerts", digest.AlertCount),
		zap.Int("errors", digest.Errors),
	)

	p.env.recordRun(ctx, log, journal.Run{
		ID:            digest.RunID,
		Pipeline:      metrics.PipelineAlerts,
		Status:        status,
		Message:       msg,
		EmailsScanned: digest.EmailsScanned,
		AlertCount:    digest.AlertCount,
		Errors:        digest.Errors,
		StartedAt:     started,
		FinishedAt:    finished,
	})
}
