package mailbox

import (
	"errors"
	"fmt"
	"mime"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"
)

// Security selects how the IMAP connection is encrypted.
type Security string

const (
	SecurityTLS      Security = "tls"
	SecurityStartTLS Security = "starttls"
	SecurityNone     Security = "none"
)

// ParseSecurity normalizes a configured security mode. Unknown values
// fall back to implicit TLS.
func ParseSecurity(s string) Security {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starttls":
		return SecurityStartTLS
	case "none", "plain", "insecure":
		return SecurityNone
	default:
		return SecurityTLS
	}
}

// Credentials identify and authenticate a single mailbox.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Secret   string
	Security Security
	Folder   string
}

// Addr returns host:port, defaulting the port from the security mode.
func (c Credentials) Addr() string {
	port := c.Port
	if port == 0 {
		if c.Security == SecurityTLS || c.Security == "" {
			port = 993
		} else {
			port = 143
		}
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// String renders the credentials with the secret redacted.
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Addr())
}

func (c Credentials) folder() string {
	if c.Folder == "" {
		return "INBOX"
	}
	return c.Folder
}

func (c Credentials) validate() error {
	if c.Host == "" {
		return errors.New("missing host")
	}
	if c.Username == "" {
		return errors.New("missing username")
	}
	if c.Secret == "" {
		return errors.New("missing secret")
	}
	return nil
}

// imapClient is the subset of *imapclient.Client used by Session.
type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
}

type commandWaiter interface{ Wait() error }

type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}

type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}

type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}

// dial opens a raw IMAP connection according to the security mode.
func dial(creds Credentials, timeout time.Duration) (imapClient, error) {
	opts := &imapclient.Options{
		Dialer:      &net.Dialer{Timeout: timeout},
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}

	addr := creds.Addr()

	var client *imapclient.Client
	var err error
	switch creds.Security {
	case SecurityStartTLS:
		client, err = imapclient.DialStartTLS(addr, opts)
	case SecurityNone:
		client, err = imapclient.DialInsecure(addr, opts)
	default:
		client, err = imapclient.DialTLS(addr, opts)
	}
	if err != nil {
		return nil, err
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}

func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }

func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}

func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}

func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
