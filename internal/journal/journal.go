package journal

import (
	"context"
	"time"
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run is one finished pipeline run.
type Run struct {
	ID                  string    `db:"id"`
	Pipeline            string    `db:"pipeline"`
	Status              string    `db:"status"`
	Message             string    `db:"message"`
	EmailsScanned       int       `db:"emails_scanned"`
	AttachmentsUploaded int       `db:"attachments_uploaded"`
	AlertCount          int       `db:"alert_count"`
	Errors              int       `db:"errors"`
	StartedAt           time.Time `db:"started_at"`
	FinishedAt          time.Time `db:"finished_at"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Attachment records the outcome of one attachment within a run.
type Attachment struct {
	ID         string    `db:"id"`
	RunID      string    `db:"run_id"`
	MessageID  string    `db:"message_id"`
	Filename   string    `db:"filename"`
	StoredName string    `db:"stored_name"`
	Size       int64     `db:"size"`
	Stored     bool      `db:"stored"`
	Recorded   bool      `db:"recorded"`
	CreatedAt  time.Time `db:"created_at"`
}

// RunFilter narrows RecentRuns.
type RunFilter struct {
	Pipeline *string
	Limit    int
}

// Journal is a local audit trail of runs. It is informational only and is
// never consulted to skip work.
type Journal interface {
	RecordRun(ctx context.Context, run Run) error
	RecordAttachment(ctx context.Context, a Attachment) error
	RecentRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	AttachmentsForRun(ctx context.Context, runID string) ([]Attachment, error)
	Close() error
}
