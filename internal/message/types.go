package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Envelope is the normalized, decoded form of one mail message.
type Envelope struct {
	// ID is the server-assigned message identifier (an IMAP UID).
	ID string

	// From is the decoded From header as displayed to people,
	// e.g. "Accounts Payable <ap@vendor.example>".
	From string

	// FromAddress is the bare sender address when the From header parses.
	FromAddress string

	// To holds the bare recipient addresses from the To header.
	To []string

	Subject string

	// BodyText is the first text/plain part, or empty.
	BodyText string

	// Attachments are listed in MIME walk order.
	Attachments []AttachmentPart

	// Problems lists sub-parts that failed to decode and were defaulted.
	Problems []*DecodeError
}

// Sender returns the address to record for the message, preferring the
// parsed address over the display form.
func (e *Envelope) Sender() string {
	if e.FromAddress != "" {
		return e.FromAddress
	}
	return e.From
}

// AttachmentPart is a leaf MIME part that declares a filename.
type AttachmentPart struct {
	Filename       string
	ContentType    string
	Content        []byte
	HasDisposition bool
}

// DecodeError describes a header or part that could not be decoded.
type DecodeError struct {
	MessageID string
	// Part is a header name ("Subject") or a MIME path ("1.2").
	Part string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message %s part %s: %v", e.MessageID, e.Part, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// partPath renders a go-message walk path as a dotted, 1-based MIME path.
func partPath(path []int) string {
	if len(path) == 0 {
		return "0"
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p + 1)
	}
	return strings.Join(parts, ".")
}
