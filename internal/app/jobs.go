package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/pipeline"
	"github.com/nhle/mailagent/internal/scheduler"
)

// Job names.
const (
	JobIngest = "ingest"
	JobAlerts = "alerts"
)

const jobTimeout = 15 * time.Minute

// Jobs returns the scheduled form of both pipelines.
func (a *App) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:    JobIngest,
			Spec:    a.Config.Ingest.Schedule,
			Timeout: jobTimeout,
			Run:     a.runIngest,
		},
		{
			Name:    JobAlerts,
			Spec:    a.Config.Alerts.Schedule,
			Timeout: jobTimeout,
			Run:     a.runAlerts,
		},
	}
}

// NewScheduler registers every job with a new scheduler.
func (a *App) NewScheduler(opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	s := scheduler.New(a.Logger, opts...)
	for _, job := range a.Jobs() {
		if err := s.Register(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *App) runIngest(ctx context.Context) (string, error) {
	summary := a.Invoices.Run(ctx)
	if summary.Failed() {
		return "", errors.New(summary.Message)
	}
	return fmt.Sprintf("scanned %d, uploaded %d, errors %d",
		summary.EmailsScanned, summary.AttachmentsUploaded, summary.Errors), nil
}

// runAlerts logs the digest text; the job result is a one-line count.
func (a *App) runAlerts(ctx context.Context) (string, error) {
	digest, err := a.Alerts.Collect(ctx)
	a.Logger.Info("alert digest", zap.String("text", pipeline.ResultText(digest, err)))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("scanned %d, alerts %d, errors %d",
		digest.EmailsScanned, digest.AlertCount, digest.Errors), nil
}
