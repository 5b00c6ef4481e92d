package mailbox

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"
)

// Session is a single authenticated connection with the configured folder
// selected. A Session is owned by exactly one pipeline run and is not safe
// for concurrent use.
type Session struct {
	client      imapClient
	creds       Credentials
	peek        bool
	now         func() time.Time
	logger      *zap.Logger
	closed      bool
	dialTimeout time.Duration
	newClient   func(Credentials, time.Duration) (imapClient, error)
}

// Option customizes a Session before it connects.
type Option func(*Session)

// WithPeek makes fetches use BODY.PEEK[] so reading a message does not
// mark it \Seen.
func WithPeek(peek bool) Option {
	return func(s *Session) {
		s.peek = peek
	}
}

// WithDialTimeout overrides the socket dial timeout.
func WithDialTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout > 0 {
			s.dialTimeout = timeout
		}
	}
}

// WithClock overrides the wall clock used to compute search windows.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for session diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func withClientFactory(factory func(Credentials, time.Duration) (imapClient, error)) Option {
	return func(s *Session) {
		s.newClient = factory
	}
}

// Open connects, authenticates, and selects the configured folder. Every
// failure is reported as a *ConnectionError; a half-open connection is
// released before returning.
func Open(creds Credentials, opts ...Option) (*Session, error) {
	s := &Session{
		creds:       creds,
		now:         time.Now,
		logger:      zap.NewNop(),
		dialTimeout: 30 * time.Second,
		newClient:   dial,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := creds.validate(); err != nil {
		return nil, &ConnectionError{Host: creds.Host, Op: "validate", Err: err}
	}

	client, err := s.newClient(creds, s.dialTimeout)
	if err != nil {
		return nil, &ConnectionError{Host: creds.Host, Op: "dial", Err: err}
	}
	s.client = client

	if err := client.Login(creds.Username, creds.Secret).Wait(); err != nil {
		s.release()
		return nil, &ConnectionError{
			Host: creds.Host,
			Op:   "login",
			Err:  fmt.Errorf("authentication failed for %s: %w", creds.Username, err),
		}
	}

	folder := creds.folder()
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		s.release()
		return nil, &ConnectionError{
			Host: creds.Host,
			Op:   "select " + folder,
			Err:  err,
		}
	}

	s.logger.Debug("mailbox session opened",
		zap.Stringer("mailbox", creds),
		zap.String("folder", folder),
	)
	return s, nil
}

// Search runs a UID SEARCH for the window and returns the matching UIDs,
// in server order, as opaque strings.
func (s *Session) Search(w Window) ([]string, error) {
	if s == nil || s.client == nil || s.closed {
		return nil, &SearchError{Window: w, Err: errors.New("session is closed")}
	}

	now := s.now()
	data, err := s.client.UIDSearch(w.Criteria(now), nil).Wait()
	if err != nil {
		return nil, &SearchError{Window: w, Err: err}
	}

	uids := data.AllUIDs()
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}

	s.logger.Debug("mailbox search complete",
		zap.String("predicate", w.Predicate(now)),
		zap.Int("matches", len(ids)),
	)
	return ids, nil
}

// Fetch returns the full RFC 822 bytes of a single message. Fetches are
// never retried.
func (s *Session) Fetch(id string) ([]byte, error) {
	if s == nil || s.client == nil || s.closed {
		return nil, &FetchError{ID: id, Err: errors.New("session is closed")}
	}

	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("invalid message id %q", id)}
	}

	section := &imap.FetchItemBodySection{Peek: s.peek}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	bufs, err := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts).Collect()
	if err != nil {
		return nil, &FetchError{ID: id, Err: err}
	}
	if len(bufs) == 0 {
		return nil, &FetchError{ID: id, Err: errors.New("message not found")}
	}

	body := bufs[0].FindBodySection(section)
	if body == nil {
		return nil, &FetchError{ID: id, Err: errors.New("message has no body section")}
	}

	return append([]byte(nil), body...), nil
}

// Close logs out and releases the connection. It is idempotent and safe to
// call on a nil Session.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	if s.client == nil {
		return nil
	}

	logoutErr := s.client.Logout().Wait()
	// The server usually drops the socket after LOGOUT, so a close error
	// here carries no information.
	if err := s.client.Close(); err != nil {
		s.logger.Debug("imap close", zap.Error(err))
	}
	s.client = nil

	if logoutErr != nil {
		return fmt.Errorf("imap logout: %w", logoutErr)
	}
	return nil
}

// release drops a connection that never finished opening.
func (s *Session) release() {
	if s.client == nil {
		return
	}
	_ = s.client.Logout().Wait()
	if err := s.client.Close(); err != nil {
		s.logger.Debug("imap close after failed open", zap.Error(err))
	}
	s.client = nil
	s.closed = true
}
