package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/tests/testutil"
)

func newAlertPipeline(o *opener, opts ...func(*AlertConfig)) *AlertPipeline {
	cfg := AlertConfig{
		Open:     o.open,
		Now:      clock,
		NewRunID: sequentialIDs(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewAlertPipeline(cfg)
}

func TestClassifier(t *testing.T) {
	c := NewClassifier(nil)

	require.True(t, c.IsAlert("URGENT", "There is a critical issue with the build"))
	require.False(t, c.IsAlert("Hello", "lunch plans"))
	require.True(t, c.IsAlert("Security NOTIFICATION", ""))

	kw, ok := c.Match("Weekly report", "one warning remains")
	require.True(t, ok)
	require.Equal(t, "warning", kw)
}

func TestClassifierCustomKeywords(t *testing.T) {
	c := NewClassifier([]string{" Outage ", "", "PAGE"})
	require.Equal(t, []string{"outage", "page"}, c.Keywords())
	require.True(t, c.IsAlert("Partial outage in eu-west", ""))
	require.False(t, c.IsAlert("critical", ""))

	require.Equal(t, DefaultKeywords, NewClassifier([]string{"  "}).Keywords())
}

func TestAlertDigest(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"1", "2", "3"},
		messages: map[string][]byte{
			"1": buildMessage("ops@example.com", "", "URGENT", "critical issue in prod"),
			"2": buildMessage("friend@example.com", "", "Hello", "lunch plans"),
			"3": buildMessage("monitor@example.com", "", "Disk Warning", "85% used"),
		},
	}
	o := &opener{box: box}
	p := newAlertPipeline(o)

	digest, err := p.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-10-19", digest.Date)
	require.Equal(t, 3, digest.Matched)
	require.Equal(t, 3, digest.EmailsScanned)
	require.Equal(t, 2, digest.AlertCount)
	require.Equal(t, []Alert{
		{From: "ops@example.com", Subject: "URGENT", Keyword: "critical"},
		{From: "monitor@example.com", Subject: "Disk Warning", Keyword: "warning"},
	}, digest.Alerts)

	require.Equal(t, []bool{true}, o.peeks, "alerts must not mark mail read")
	require.Equal(t, []mailbox.Window{{Mode: mailbox.SinceMode}}, box.windows)
	require.Equal(t, 1, box.closeCalls)
}

func TestAlertRunRendersDigest(t *testing.T) {
	box := &fakeMailbox{
		ids:      []string{"1"},
		messages: map[string][]byte{"1": buildMessage("ops@example.com", "", "URGENT", "critical issue")},
	}
	out := newAlertPipeline(&opener{box: box}).Run(context.Background())

	require.Contains(t, out, "2026-10-19")
	require.Contains(t, out, "Scanned 1 email, found 1 alert.")
	require.Contains(t, out, "1. From: ops@example.com")
	require.Contains(t, out, "Subject: URGENT")
}

func TestAlertRunFixedMessages(t *testing.T) {
	connFail := &opener{err: &mailbox.ConnectionError{Host: "h", Op: "dial", Err: errors.New("refused")}}
	require.Equal(t, ConnectionFailedMessage, newAlertPipeline(connFail).Run(context.Background()))

	plainFail := &opener{err: errors.New("keyring locked")}
	require.Equal(t, ConnectionFailedMessage, newAlertPipeline(plainFail).Run(context.Background()))

	searchFail := &fakeMailbox{searchErr: errors.New("BAD")}
	require.Equal(t, SearchFailedMessage, newAlertPipeline(&opener{box: searchFail}).Run(context.Background()))
	require.Equal(t, 1, searchFail.closeCalls)

	empty := &fakeMailbox{}
	require.Equal(t, NoEmailsTodayMessage, newAlertPipeline(&opener{box: empty}).Run(context.Background()))
	require.Equal(t, 1, empty.closeCalls)
}

func TestAlertCollectErrorTypes(t *testing.T) {
	_, err := newAlertPipeline(&opener{err: errors.New("boom")}).Collect(context.Background())
	require.True(t, mailbox.IsConnectionError(err))

	_, err = newAlertPipeline(&opener{box: &fakeMailbox{searchErr: errors.New("BAD")}}).Collect(context.Background())
	require.True(t, mailbox.IsSearchError(err))
}

func TestAlertFetchFailureIsCounted(t *testing.T) {
	box := &fakeMailbox{
		ids:       []string{"1", "2"},
		messages:  map[string][]byte{"2": buildMessage("a@x.example", "", "Hello", "lunch plans")},
		fetchErrs: map[string]error{"1": errors.New("gone")},
	}
	p := newAlertPipeline(&opener{box: box})

	digest, err := p.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, digest.Errors)
	require.Equal(t, 1, digest.EmailsScanned)
	require.Zero(t, digest.AlertCount)

	out := digest.Render()
	require.Contains(t, out, "1 message could not be read.")
	require.Contains(t, out, "No alerts today.")
}

func TestAlertLogoutFailureDoesNotChangeResult(t *testing.T) {
	box := &fakeMailbox{
		ids:      []string{"1"},
		messages: map[string][]byte{"1": buildMessage("ops@example.com", "", "URGENT", "critical issue")},
		closeErr: errors.New("connection reset"),
	}
	out := newAlertPipeline(&opener{box: box}).Run(context.Background())
	require.Contains(t, out, "found 1 alert")
}

func TestAlertJournalsFailedRun(t *testing.T) {
	j := testutil.NewTestJournal(t)
	p := newAlertPipeline(&opener{err: errors.New("refused")}, func(cfg *AlertConfig) { cfg.Journal = j })

	require.Equal(t, ConnectionFailedMessage, p.Run(context.Background()))

	runs, err := j.RecentRuns(context.Background(), journal.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "alerts", runs[0].Pipeline)
	require.Equal(t, journal.StatusError, runs[0].Status)
	require.Contains(t, runs[0].Message, "refused")
}
