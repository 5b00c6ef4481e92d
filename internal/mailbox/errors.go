package mailbox

import (
	"errors"
	"fmt"
)

// ConnectionError indicates that the mailbox could not be dialed,
// authenticated, or selected. It is fatal to a pipeline run.
type ConnectionError struct {
	Host string
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mailbox connection (%s) %s: %v", e.Host, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SearchError indicates that a mailbox search could not be executed.
type SearchError struct {
	Window Window
	Err    error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("mailbox search %s: %v", e.Window, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// FetchError indicates that a single message could not be read. Callers
// count it and move on to the next message.
type FetchError struct {
	ID  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("mailbox fetch %s: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsSearchError reports whether err (or any error in its chain) is a SearchError.
func IsSearchError(err error) bool {
	var searchErr *SearchError
	return errors.As(err, &searchErr)
}

// IsFetchError reports whether err (or any error in its chain) is a FetchError.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}
