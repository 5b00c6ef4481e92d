package mailbox

import (
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
)

// imapDateLayout is the date format IMAP servers expect in SINCE predicates.
const imapDateLayout = "02-Jan-2006"

// WindowMode selects the flag predicate applied on top of the date bound.
type WindowMode int

const (
	// SinceMode matches every message received on or after the window start.
	SinceMode WindowMode = iota
	// SinceUnseenMode additionally restricts the search to unread messages.
	SinceUnseenMode
)

func (m WindowMode) String() string {
	switch m {
	case SinceUnseenMode:
		return "SINCE_UNSEEN"
	default:
		return "SINCE"
	}
}

// Window bounds which messages a search considers.
type Window struct {
	Mode     WindowMode
	DaysBack int
}

// Since returns the first day covered by the window, relative to now.
// IMAP SINCE has day granularity, so the time of day is dropped.
func (w Window) Since(now time.Time) time.Time {
	days := w.DaysBack
	if days < 0 {
		days = 0
	}
	day := now.AddDate(0, 0, -days)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}

// Criteria builds the IMAP search criteria for the window.
func (w Window) Criteria(now time.Time) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{
		Since: w.Since(now),
	}
	if w.Mode == SinceUnseenMode {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}
	return criteria
}

// Predicate renders the window the way it appears on the wire,
// e.g. "SINCE 18-Oct-2026 UNSEEN".
func (w Window) Predicate(now time.Time) string {
	p := "SINCE " + w.Since(now).Format(imapDateLayout)
	if w.Mode == SinceUnseenMode {
		p += " UNSEEN"
	}
	return p
}

func (w Window) String() string {
	return fmt.Sprintf("%s(%dd)", w.Mode, w.DaysBack)
}
