package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/tests/testutil"
)

type invoiceFixture struct {
	box    *fakeMailbox
	opener *opener
	sink   *fakeSink
	ledger *fakeLedger
	p      *InvoicePipeline
}

func newInvoiceFixture(box *fakeMailbox, opts ...func(*InvoiceConfig)) *invoiceFixture {
	f := &invoiceFixture{
		box:    box,
		opener: &opener{box: box},
		sink:   newFakeSink(),
		ledger: &fakeLedger{},
	}
	cfg := InvoiceConfig{
		Sink:      f.sink,
		Ledger:    f.ledger,
		DaysBack:  1,
		Recipient: "invoices@example.com",
		Now:       clock,
		NewRunID:  sequentialIDs(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Open = f.opener.open
	f.p = NewInvoicePipeline(cfg)
	return f
}

func TestInvoiceEmptySearchYieldsZeroSummary(t *testing.T) {
	f := newInvoiceFixture(&fakeMailbox{})

	summary := f.p.Run(context.Background())

	require.Equal(t, StatusSuccess, summary.Status)
	require.Zero(t, summary.EmailsScanned)
	require.Zero(t, summary.AttachmentsUploaded)
	require.Zero(t, summary.Errors)
	require.Empty(t, summary.InvoiceDetails)
	require.Equal(t, 1, f.box.closeCalls)

	out, err := json.Marshal(summary)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"run_id": "run-1",
		"status": "success",
		"emails_scanned": 0,
		"attachments_uploaded": 0,
		"errors": 0,
		"invoice_details": []
	}`, string(out))
}

func TestInvoiceOneMessageTwoAttachments(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"42"},
		messages: map[string][]byte{
			"42": buildMessage("Accounts <ap@vendor.example>", "billing@example.com", "March invoices", "see attached",
				attachmentSpec{"inv 001.pdf", "one"},
				attachmentSpec{"inv-002.pdf", "two"},
			),
		},
	}
	f := newInvoiceFixture(box)

	summary := f.p.Run(context.Background())

	require.Equal(t, 1, summary.EmailsScanned)
	require.Equal(t, 2, summary.AttachmentsUploaded)
	require.Zero(t, summary.Errors)
	require.Equal(t, []InvoiceDetail{
		{From: "Accounts <ap@vendor.example>", Subject: "March invoices", Filename: "inv 001.pdf"},
		{From: "Accounts <ap@vendor.example>", Subject: "March invoices", Filename: "inv-002.pdf"},
	}, summary.InvoiceDetails)

	require.Equal(t, []string{"42_inv_001.pdf", "42_inv_002.pdf"}, f.sink.order)
	require.Equal(t, "one", strings.TrimSpace(string(f.sink.objects["42_inv_001.pdf"])))

	require.Len(t, f.ledger.records, 2)
	rec := f.ledger.records[0]
	require.Equal(t, "ap@vendor.example", rec.FromEmail)
	require.Equal(t, "billing@example.com", rec.ToEmail)
	require.Equal(t, "March invoices", rec.Subject)
	require.Equal(t, "42_inv_001.pdf", rec.AttachmentName)
	require.Equal(t, "unset", rec.DocumentID)
	require.Equal(t, "not yet", rec.Processed)
	require.Equal(t, "42", rec.MessageID)
}

func TestInvoiceUsesUnseenWindowAndMarksRead(t *testing.T) {
	f := newInvoiceFixture(&fakeMailbox{}, func(cfg *InvoiceConfig) { cfg.DaysBack = 3 })

	f.p.Run(context.Background())

	require.Equal(t, []mailbox.Window{{Mode: mailbox.SinceUnseenMode, DaysBack: 3}}, f.box.windows)
	require.Equal(t, []bool{false}, f.opener.peeks)
}

func TestInvoiceFetchFailureContinues(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"1", "2", "3"},
		messages: map[string][]byte{
			"1": buildMessage("a@x.example", "", "one", "body", attachmentSpec{"a.pdf", "a"}),
			"3": buildMessage("c@x.example", "", "three", "body", attachmentSpec{"c.pdf", "c"}),
		},
		fetchErrs: map[string]error{"2": errors.New("NO message vanished")},
	}
	f := newInvoiceFixture(box)

	summary := f.p.Run(context.Background())

	require.Equal(t, StatusSuccess, summary.Status)
	require.GreaterOrEqual(t, summary.Errors, 1)
	require.Equal(t, 2, summary.EmailsScanned)
	require.Equal(t, 2, summary.AttachmentsUploaded)
	require.Equal(t, []string{"1", "2", "3"}, box.fetched)
}

func TestInvoiceMessageWithoutAttachments(t *testing.T) {
	box := &fakeMailbox{
		ids:      []string{"5"},
		messages: map[string][]byte{"5": buildMessage("a@x.example", "", "hello", "no files here")},
	}
	f := newInvoiceFixture(box)

	summary := f.p.Run(context.Background())

	require.Equal(t, 1, summary.EmailsScanned)
	require.Zero(t, summary.AttachmentsUploaded)
	require.Zero(t, summary.Errors)
	require.Empty(t, f.ledger.records)
}

func TestInvoiceLedgerFailureKeepsUpload(t *testing.T) {
	box := &fakeMailbox{
		ids:      []string{"7"},
		messages: map[string][]byte{"7": buildMessage("a@x.example", "", "inv", "b", attachmentSpec{"x.pdf", "x"})},
	}
	f := newInvoiceFixture(box)
	f.ledger.reject = true

	summary := f.p.Run(context.Background())

	require.Equal(t, 1, summary.AttachmentsUploaded)
	require.Equal(t, 1, summary.Errors)
	require.Len(t, summary.InvoiceDetails, 1)
	require.Contains(t, f.sink.objects, "7_x.pdf")
}

func TestInvoiceStorageFailureSkipsLedger(t *testing.T) {
	box := &fakeMailbox{
		ids: []string{"8"},
		messages: map[string][]byte{"8": buildMessage("a@x.example", "", "inv", "b",
			attachmentSpec{"bad.pdf", "x"},
			attachmentSpec{"good.pdf", "y"},
		)},
	}
	f := newInvoiceFixture(box)
	f.sink.fail["8_bad.pdf"] = true

	summary := f.p.Run(context.Background())

	require.Equal(t, 1, summary.Errors)
	require.Equal(t, 1, summary.AttachmentsUploaded)
	require.Len(t, f.ledger.records, 1)
	require.Equal(t, "8_good.pdf", f.ledger.records[0].AttachmentName)
	require.Equal(t, "good.pdf", summary.InvoiceDetails[0].Filename)
}

func TestInvoiceConnectionFailureAborts(t *testing.T) {
	f := newInvoiceFixture(nil)
	f.opener.err = &mailbox.ConnectionError{Host: "mail.example", Op: "login", Err: errors.New("bad credentials")}

	summary := f.p.Run(context.Background())

	require.True(t, summary.Failed())
	require.Contains(t, summary.Message, "mailbox connection failed")
	require.Zero(t, summary.EmailsScanned)
	require.Zero(t, summary.AttachmentsUploaded)
	require.Empty(t, summary.InvoiceDetails)
}

func TestInvoiceSearchFailureClosesSession(t *testing.T) {
	box := &fakeMailbox{searchErr: errors.New("BAD criteria")}
	f := newInvoiceFixture(box)

	summary := f.p.Run(context.Background())

	require.True(t, summary.Failed())
	require.Contains(t, summary.Message, "mailbox search failed")
	require.Equal(t, 1, box.closeCalls)
}

func TestInvoiceLogoutFailureIsOnlyLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	box := &fakeMailbox{closeErr: errors.New("connection reset")}
	f := newInvoiceFixture(box, func(cfg *InvoiceConfig) { cfg.Logger = zap.New(core) })

	summary := f.p.Run(context.Background())

	require.Equal(t, StatusSuccess, summary.Status)
	require.Zero(t, summary.Errors)
	require.Equal(t, 1, logs.FilterMessage("mailbox logout failed").Len())
}

func TestInvoiceRerunReproducesNames(t *testing.T) {
	box := &fakeMailbox{
		ids:      []string{"42"},
		messages: map[string][]byte{"42": buildMessage("a@x.example", "", "inv", "b", attachmentSpec{"Invoice (March).pdf", "v1"})},
	}
	f := newInvoiceFixture(box)

	first := f.p.Run(context.Background())
	second := f.p.Run(context.Background())

	require.Equal(t, first.InvoiceDetails, second.InvoiceDetails)
	require.Len(t, f.sink.objects, 1)
	require.Equal(t, []string{"42_Invoice_March.pdf", "42_Invoice_March.pdf"}, f.sink.order)
	require.Len(t, f.ledger.records, 2)
	require.Equal(t, f.ledger.records[0], f.ledger.records[1])
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestInvoiceRecipientFallsBackToMailboxUser(t *testing.T) {
	box := &fakeMailbox{
		ids:      []string{"3"},
		messages: map[string][]byte{"3": buildMessage("a@x.example", "", "inv", "b", attachmentSpec{"x.pdf", "x"})},
	}
	f := newInvoiceFixture(box)

	f.p.Run(context.Background())

	require.Equal(t, "invoices@example.com", f.ledger.records[0].ToEmail)
}

func TestInvoiceJournalsRunAndAttachments(t *testing.T) {
	j := testutil.NewTestJournal(t)
	box := &fakeMailbox{
		ids: []string{"9"},
		messages: map[string][]byte{"9": buildMessage("a@x.example", "", "inv", "b",
			attachmentSpec{"a.pdf", "a"},
			attachmentSpec{"b.pdf", "b"},
		)},
	}
	f := newInvoiceFixture(box, func(cfg *InvoiceConfig) { cfg.Journal = j })
	f.sink.fail["9_b.pdf"] = true

	summary := f.p.Run(context.Background())

	runs, err := j.RecentRuns(context.Background(), journal.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, summary.RunID, runs[0].ID)
	require.Equal(t, "invoice", runs[0].Pipeline)
	require.Equal(t, 1, runs[0].AttachmentsUploaded)
	require.Equal(t, 1, runs[0].Errors)

	entries, err := j.AttachmentsForRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, entries[0].Stored)
	require.True(t, entries[0].Recorded)
	require.False(t, entries[1].Stored)
	require.False(t, entries[1].Recorded)
}
