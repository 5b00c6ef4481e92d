package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/mailagent/internal/app"
	"github.com/nhle/mailagent/internal/credential"
	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/metrics"
	"github.com/nhle/mailagent/internal/model"
)

func TestSecretKey(t *testing.T) {
	cfg := &model.AppConfig{
		Mailbox: model.MailboxConfig{Username: "invoices@example.com"},
		Storage: model.StorageConfig{AccessKey: "AK"},
	}

	key, err := secretKey(cfg, "mailbox")
	require.NoError(t, err)
	require.Equal(t, "mailbox-invoices@example.com", key)

	key, err = secretKey(cfg, "storage")
	require.NoError(t, err)
	require.Equal(t, "storage-AK", key)

	_, err = secretKey(cfg, "ledger")
	require.Error(t, err)

	_, err = secretKey(&model.AppConfig{}, "storage")
	require.ErrorContains(t, err, "storage.access_key")
}

func TestPromptSecretReadsPipedInput(t *testing.T) {
	var prompt bytes.Buffer
	secret, err := promptSecret(context.Background(), strings.NewReader("  hunter2 \nignored\n"), &prompt, "mailbox-a@example.com")
	require.NoError(t, err)
	require.Equal(t, "hunter2", secret)
	require.Contains(t, prompt.String(), "Secret for mailbox-a@example.com")
	require.NotContains(t, prompt.String(), "hunter2")

	_, err = promptSecret(context.Background(), strings.NewReader("\n"), &prompt, "mailbox-a@example.com")
	require.ErrorContains(t, err, "empty secret")
}

// stubKeyring replaces keyring access for the duration of a test.
func stubKeyring(t *testing.T) map[string]string {
	t.Helper()
	stored := map[string]string{}
	setSecret = func(key, value string) error {
		stored[key] = value
		return nil
	}
	deleteSecret = func(key string) error {
		delete(stored, key)
		return nil
	}
	t.Cleanup(func() {
		setSecret = credential.Set
		deleteSecret = credential.Delete
	})
	return stored
}

func executeRoot(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", ""}, args...))
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		configPathFlag = model.DefaultConfigPath()
		historyLimitFlag = 20
		historyPipelineFlag = ""
		historyRunFlag = ""
	})
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSecretSetAndDeleteWithPipedStdin(t *testing.T) {
	t.Setenv("MAILAGENT_MAILBOX_USERNAME", "invoices@example.com")
	stored := stubKeyring(t)

	out, prompt, err := executeRoot(t, "hunter2\n", "secret", "set", "mailbox")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"mailbox-invoices@example.com": "hunter2"}, stored)
	require.Contains(t, out, "Stored mailbox-invoices@example.com")
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, prompt, "hunter2")

	out, _, err = executeRoot(t, "", "secret", "delete", "mailbox")
	require.NoError(t, err)
	require.Empty(t, stored)
	require.Contains(t, out, "Deleted mailbox-invoices@example.com")
}

func TestSecretSetRejectsEmptyInput(t *testing.T) {
	t.Setenv("MAILAGENT_MAILBOX_USERNAME", "invoices@example.com")
	stored := stubKeyring(t)

	_, _, err := executeRoot(t, "\n", "secret", "set", "mailbox")
	require.ErrorContains(t, err, "empty secret")
	require.Empty(t, stored)
}

func TestMetricsMuxServesCounters(t *testing.T) {
	metrics.IncrementAlerts()

	rec := httptest.NewRecorder()
	metricsMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "mailagent_alerts_total")

	rec = httptest.NewRecorder()
	metricsMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "ok", rec.Body.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "mailagent dev")
}

func TestHistoryRejectsUnknownPipeline(t *testing.T) {
	t.Setenv("MAILAGENT_JOURNAL_PATH", ":memory:")

	_, _, err := executeRoot(t, "", "history", "--pipeline", "billing")
	require.ErrorContains(t, err, `unknown pipeline "billing"`)
}

func TestHistoryNeedsOnlyTheJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	t.Setenv("MAILAGENT_JOURNAL_PATH", path)

	j, err := journal.NewSQLiteJournal(path)
	require.NoError(t, err)
	ctx := context.Background()
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordRun(ctx, journal.Run{
		ID: "run-7", Pipeline: metrics.PipelineInvoice, Status: journal.StatusSuccess,
		EmailsScanned: 1, AttachmentsUploaded: 1, StartedAt: started, FinishedAt: started.Add(time.Second),
	}))
	require.NoError(t, j.RecordAttachment(ctx, journal.Attachment{
		RunID: "run-7", MessageID: "7", Filename: "invoice.pdf", StoredName: "7_invoice.pdf",
		Size: 2048, Stored: true, Recorded: true,
	}))
	require.NoError(t, j.Close())

	out, _, err := executeRoot(t, "", "history", "--pipeline", "invoice")
	require.NoError(t, err)
	require.Contains(t, out, "invoice")
	require.Contains(t, out, "1s")

	out, _, err = executeRoot(t, "", "history", "--run", "run-7")
	require.NoError(t, err)
	require.Contains(t, out, "7_invoice.pdf")
	require.Contains(t, out, "2048 B")

	out, _, err = executeRoot(t, "", "history", "--run", "missing")
	require.NoError(t, err)
	require.Contains(t, out, "No attachments recorded")
}

func TestHistoryWithoutJournalPath(t *testing.T) {
	t.Setenv("MAILAGENT_JOURNAL_PATH", "")

	_, _, err := executeRoot(t, "", "history")
	require.ErrorIs(t, err, app.ErrNoJournal)
}
