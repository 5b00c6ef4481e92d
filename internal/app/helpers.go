package app

import (
	"context"
	"fmt"

	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/model"
)

// OpenJournal opens the configured journal for reading. Unlike New it
// needs no mailbox, storage or ledger settings.
func OpenJournal(cfg model.JournalConfig) (journal.Journal, error) {
	if cfg.Path == "" {
		return nil, ErrNoJournal
	}
	j, err := journal.NewSQLiteJournal(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return j, nil
}

// RecentRuns returns the most recent runs in j, newest first, optionally
// limited to one pipeline.
func RecentRuns(ctx context.Context, j journal.Journal, pipelineName string, limit int) ([]journal.Run, error) {
	filter := journal.RunFilter{Limit: limit}
	if pipelineName != "" {
		filter.Pipeline = &pipelineName
	}
	return j.RecentRuns(ctx, filter)
}

// History returns the most recent runs of the wired journal.
func (a *App) History(ctx context.Context, pipelineName string, limit int) ([]journal.Run, error) {
	if a.Journal == nil {
		return nil, ErrNoJournal
	}
	return RecentRuns(ctx, a.Journal, pipelineName, limit)
}
