package pipeline

import (
	"fmt"
	"strings"
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Fixed texts returned by AlertPipeline.Run in place of a digest.
const (
	ConnectionFailedMessage = "Could not connect to the mailbox. Please try again later."
	SearchFailedMessage     = "Could not search the mailbox for today's emails. Please try again later."
	NoEmailsTodayMessage    = "No emails received today."
)

// InvoiceDetail describes one stored attachment.
type InvoiceDetail struct {
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Filename string `json:"filename"`
}

// RunSummary is the outcome of one ingestion run. Message is set only
// when the run was aborted.
type RunSummary struct {
	RunID               string          `json:"run_id"`
	Status              string          `json:"status"`
	Message             string          `json:"message,omitempty"`
	EmailsScanned       int             `json:"emails_scanned"`
	AttachmentsUploaded int             `json:"attachments_uploaded"`
	Errors              int             `json:"errors"`
	InvoiceDetails      []InvoiceDetail `json:"invoice_details"`
}

func newRunSummary(runID string) *RunSummary {
	return &RunSummary{
		RunID:          runID,
		Status:         StatusSuccess,
		InvoiceDetails: []InvoiceDetail{},
	}
}

// abort marks the run failed. Counts gathered so far are kept.
func (s *RunSummary) abort(msg string) {
	s.Status = StatusError
	s.Message = msg
}

// Failed reports whether the run was aborted.
func (s *RunSummary) Failed() bool {
	return s.Status == StatusError
}

// Alert is one message classified as an alert.
type Alert struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Keyword string `json:"keyword"`
}

// AlertDigest is the structured result of an alert scan.
type AlertDigest struct {
	RunID string `json:"run_id"`
	// Date is the scanned day, YYYY-MM-DD in local time.
	Date string `json:"date"`
	// Matched is how many messages the search returned.
	Matched       int     `json:"matched"`
	EmailsScanned int     `json:"emails_scanned"`
	AlertCount    int     `json:"alert_count"`
	Errors        int     `json:"errors"`
	Alerts        []Alert `json:"alerts"`
}

// Render formats the digest as plain text.
func (d *AlertDigest) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Email alert digest for %s\n", d.Date)
	fmt.Fprintf(&b, "Scanned %d %s, found %d %s.\n",
		d.EmailsScanned, plural(d.EmailsScanned, "email", "emails"),
		d.AlertCount, plural(d.AlertCount, "alert", "alerts"))

	if d.Errors > 0 {
		fmt.Fprintf(&b, "%d %s could not be read.\n", d.Errors, plural(d.Errors, "message", "messages"))
	}

	if len(d.Alerts) == 0 {
		b.WriteString("No alerts today.\n")
		return b.String()
	}

	b.WriteString("\n")
	for i, a := range d.Alerts {
		fmt.Fprintf(&b, "%d. From: %s\n", i+1, a.From)
		fmt.Fprintf(&b, "   Subject: %s\n", a.Subject)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
