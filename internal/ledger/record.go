package ledger

import (
	"errors"
	"fmt"
)

// Defaults written into every new record; the ledger owner updates them
// once the document has been processed downstream.
const (
	DocumentIDUnset = "unset"
	ProcessedNotYet = "not yet"
)

// Record states that one attachment of one message has been stored.
type Record struct {
	FromEmail      string `json:"FROM_EMAIL"`
	ToEmail        string `json:"TO_EMAIL"`
	Subject        string `json:"SUBJECT_LINE"`
	AttachmentName string `json:"ATTACHMENT_NAMES"`
	DocumentID     string `json:"ODU_DOC_ID"`
	Processed      string `json:"PROCESSED"`
	MessageID      string `json:"L_UID"`
}

// NewRecord builds a record for a freshly stored attachment.
func NewRecord(messageID, from, to, subject, attachmentName string) Record {
	return Record{
		FromEmail:      from,
		ToEmail:        to,
		Subject:        subject,
		AttachmentName: attachmentName,
		DocumentID:     DocumentIDUnset,
		Processed:      ProcessedNotYet,
		MessageID:      messageID,
	}
}

// LedgerError is a rejected or undeliverable ledger write.
type LedgerError struct {
	MessageID      string
	AttachmentName string
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *LedgerError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ledger record %s/%s: status %d: %v", e.MessageID, e.AttachmentName, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ledger record %s/%s: %v", e.MessageID, e.AttachmentName, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// IsLedgerError checks whether an error is a ledger write failure.
func IsLedgerError(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}
