package theme

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/mailagent/internal/journal"
	"github.com/nhle/mailagent/internal/pipeline"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// DimmedStyle is used for secondary text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

var headerCellStyle = cellStyle.Bold(true).Foreground(ColorBlue)

// StatusStyle returns a color-coded style for a run status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case pipeline.StatusSuccess:
		return base.Foreground(ColorGreen)
	case pipeline.StatusError:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorYellow)
	}
}

// CountStyle highlights a non-zero error count.
func CountStyle(n int) lipgloss.Style {
	if n > 0 {
		return lipgloss.NewStyle().Foreground(ColorRed)
	}
	return lipgloss.NewStyle()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		})
}

// RenderSummary formats an ingestion summary for a terminal.
func RenderSummary(s *pipeline.RunSummary) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("Invoice ingestion"))
	b.WriteString(" ")
	b.WriteString(StatusStyle(s.Status).Render(s.Status))
	b.WriteString("\n")
	b.WriteString(DimmedStyle.Render("run " + s.RunID))
	b.WriteString("\n")
	if s.Message != "" {
		b.WriteString(s.Message)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Emails scanned: %d   Attachments uploaded: %d   Errors: %s\n",
		s.EmailsScanned, s.AttachmentsUploaded,
		CountStyle(s.Errors).Render(fmt.Sprint(s.Errors)))

	if len(s.InvoiceDetails) == 0 {
		return b.String()
	}

	t := newTable("From", "Subject", "Attachment")
	for _, d := range s.InvoiceDetails {
		t.Row(d.From, d.Subject, d.Filename)
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

// RenderRuns formats journal runs, newest first, as a table.
func RenderRuns(runs []journal.Run) string {
	if len(runs) == 0 {
		return DimmedStyle.Render("No runs recorded.") + "\n"
	}

	t := newTable("Started", "Pipeline", "Status", "Scanned", "Uploaded", "Alerts", "Errors", "Duration")
	for _, r := range runs {
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Pipeline,
			StatusStyle(r.Status).Render(r.Status),
			fmt.Sprint(r.EmailsScanned),
			fmt.Sprint(r.AttachmentsUploaded),
			fmt.Sprint(r.AlertCount),
			CountStyle(r.Errors).Render(fmt.Sprint(r.Errors)),
			r.Duration().Round(10 * time.Millisecond).String(),
		)
	}
	return t.String() + "\n"
}

// RenderAttachments formats the attachments handled by one run.
func RenderAttachments(attachments []journal.Attachment) string {
	if len(attachments) == 0 {
		return DimmedStyle.Render("No attachments recorded for this run.") + "\n"
	}

	t := newTable("Filename", "Stored as", "Size", "Stored", "Ledger")
	for _, a := range attachments {
		t.Row(
			a.Filename,
			a.StoredName,
			fmt.Sprintf("%d B", a.Size),
			yesNo(a.Stored),
			yesNo(a.Recorded),
		)
	}
	return t.String() + "\n"
}

func yesNo(ok bool) string {
	if ok {
		return lipgloss.NewStyle().Foreground(ColorGreen).Render("yes")
	}
	return lipgloss.NewStyle().Foreground(ColorRed).Render("no")
}
