package message

import (
	"bytes"
	"errors"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// maxBodyTextBytes bounds how much of a text/plain part is kept.
const maxBodyTextBytes = 1 << 20

// Decode parses a raw RFC 822 message into an Envelope. It never fails:
// headers or parts that cannot be decoded are replaced with empty values
// and recorded in Envelope.Problems.
func Decode(id string, raw []byte) *Envelope {
	env := &Envelope{ID: id}

	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
		env.problem("message", err)
		return env
	}
	if err != nil {
		env.problem("0", err)
	}

	env.decodeHeaders(mail.Header{Header: entity.Header})

	bodyFound := false
	walkErr := entity.Walk(func(path []int, part *gomessage.Entity, partErr error) error {
		where := partPath(path)
		if partErr != nil {
			// Unknown charset or transfer encoding: the part is still
			// readable, just not transcoded.
			env.problem(where, partErr)
		}

		mediaType := partMediaType(part.Header)
		isMultipart := strings.HasPrefix(mediaType, "multipart/")

		if filename := partFilename(part.Header); filename != "" && !isMultipart {
			content, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				env.problem(where, readErr)
				return nil
			}
			env.Attachments = append(env.Attachments, AttachmentPart{
				Filename:       filename,
				ContentType:    mediaType,
				Content:        content,
				HasDisposition: part.Header.Get("Content-Disposition") != "",
			})
			return nil
		}

		// First text/plain part wins; later ones are ignored.
		if mediaType == "text/plain" && !bodyFound {
			bodyFound = true
			text, readErr := io.ReadAll(io.LimitReader(part.Body, maxBodyTextBytes))
			if readErr != nil {
				env.problem(where, readErr)
				return nil
			}
			env.BodyText = string(text)
		}
		return nil
	})
	if walkErr != nil {
		env.problem("walk", walkErr)
	}

	return env
}

func (e *Envelope) decodeHeaders(h mail.Header) {
	e.From = e.headerText(h, "From")
	e.Subject = e.headerText(h, "Subject")

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		e.FromAddress = from[0].Address
	}

	if to, err := h.AddressList("To"); err == nil {
		for _, addr := range to {
			e.To = append(e.To, addr.Address)
		}
	} else if raw := h.Get("To"); raw != "" {
		e.problem("To", err)
	}
}

// headerText decodes an RFC 2047 header, falling back to the raw value.
func (e *Envelope) headerText(h mail.Header, key string) string {
	text, err := h.Text(key)
	if err != nil {
		e.problem(key, err)
		return h.Get(key)
	}
	return text
}

func (e *Envelope) problem(part string, err error) {
	if err == nil {
		err = errors.New("unknown decode failure")
	}
	e.Problems = append(e.Problems, &DecodeError{MessageID: e.ID, Part: part, Err: err})
}

// partMediaType returns the lowercased media type of a part. A missing
// Content-Type means text/plain (RFC 2045); a malformed one yields "".
func partMediaType(h gomessage.Header) string {
	if h.Get("Content-Type") == "" {
		return "text/plain"
	}
	mediaType, _, err := h.ContentType()
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

// partFilename returns the declared filename from Content-Disposition,
// falling back to the Content-Type name parameter.
func partFilename(h gomessage.Header) string {
	ah := mail.AttachmentHeader{Header: h}
	filename, _ := ah.Filename()
	return strings.TrimSpace(filename)
}
