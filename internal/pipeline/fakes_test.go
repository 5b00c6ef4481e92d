package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nhle/mailagent/internal/attachment"
	"github.com/nhle/mailagent/internal/ledger"
	"github.com/nhle/mailagent/internal/mailbox"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeMailbox struct {
	ids       []string
	messages  map[string][]byte
	fetchErrs map[string]error
	searchErr error
	closeErr  error

	windows    []mailbox.Window
	fetched    []string
	closeCalls int
}

func (m *fakeMailbox) Search(w mailbox.Window) ([]string, error) {
	m.windows = append(m.windows, w)
	if m.searchErr != nil {
		return nil, &mailbox.SearchError{Window: w, Err: m.searchErr}
	}
	return m.ids, nil
}

func (m *fakeMailbox) Fetch(id string) ([]byte, error) {
	m.fetched = append(m.fetched, id)
	if err := m.fetchErrs[id]; err != nil {
		return nil, &mailbox.FetchError{ID: id, Err: err}
	}
	raw, ok := m.messages[id]
	if !ok {
		return nil, &mailbox.FetchError{ID: id, Err: errors.New("message not found")}
	}
	return raw, nil
}

func (m *fakeMailbox) Close() error {
	m.closeCalls++
	return m.closeErr
}

// opener hands out the same fake mailbox and remembers how it was asked.
type opener struct {
	box   *fakeMailbox
	err   error
	peeks []bool
}

func (o *opener) open(_ context.Context, peek bool) (Mailbox, error) {
	o.peeks = append(o.peeks, peek)
	if o.err != nil {
		return nil, o.err
	}
	return o.box, nil
}

type fakeSink struct {
	mu      sync.Mutex
	objects map[string][]byte
	order   []string
	fail    map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{objects: map[string][]byte{}, fail: map[string]bool{}}
}

func (s *fakeSink) Store(_ context.Context, name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[name] {
		return &attachment.StorageError{Backend: "fake", Name: name, Err: errors.New("bucket unavailable")}
	}
	s.objects[name] = append([]byte(nil), content...)
	s.order = append(s.order, name)
	return nil
}

type fakeLedger struct {
	records []ledger.Record
	reject  bool
}

func (l *fakeLedger) Record(_ context.Context, rec ledger.Record) bool {
	l.records = append(l.records, rec)
	return !l.reject
}

type attachmentSpec struct {
	filename string
	content  string
}

// buildMessage renders a multipart/mixed message with a plain text body
// and the given attachments.
func buildMessage(from, to, subject, body string, attachments ...attachmentSpec) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	if to != "" {
		fmt.Fprintf(&b, "To: %s\r\n", to)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n\r\n")
	b.WriteString("--XYZ\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body + "\r\n")
	for _, a := range attachments {
		b.WriteString("--XYZ\r\n")
		b.WriteString("Content-Type: application/octet-stream\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", a.filename)
		b.WriteString(a.content + "\r\n")
	}
	b.WriteString("--XYZ--\r\n")
	return []byte(b.String())
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
}
