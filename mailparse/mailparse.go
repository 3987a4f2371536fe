// CLAUDE:SUMMARY MIME email parsing via emersion/go-message: headers, bodies, and content-addressed attachments.
// Package mailparse parses raw inbound email bytes into a structured form.
//
// Parsing is structural: a message that cannot be read at all fails with
// ErrMalformed (terminal for the attempt), while per-part oddities like
// unknown charsets degrade to skipped parts instead of failing the message.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ErrMalformed is returned when the message structure cannot be parsed.
var ErrMalformed = errors.New("mailparse: malformed message")

// Address is a parsed email address with an optional display name.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Attachment is one non-body MIME part.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	// ContentID is set for content-addressed inline parts (cid: references),
	// without the surrounding angle brackets.
	ContentID string `json:"content_id"`
	Data      []byte `json:"-"`
}

// IsImage reports whether the attachment is image-typed.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// Email is a parsed inbound message.
type Email struct {
	// MessageID is the native message identifier, without angle brackets.
	// Empty when the header is absent.
	MessageID   string
	From        Address
	To          []string
	Subject     string
	Date        time.Time // zero when the header is absent or unparseable
	Text        string
	HTML        string
	Attachments []Attachment
}

// BodyText returns the plain-text body, falling back to the HTML body when
// plain text is absent. Used as fingerprint input.
func (e *Email) BodyText() string {
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	return e.HTML
}

// HasBody reports whether the message carries any text or HTML body.
func (e *Email) HasBody() bool {
	return strings.TrimSpace(e.Text) != "" || strings.TrimSpace(e.HTML) != ""
}

// Parse parses raw message bytes. Fails with ErrMalformed only when the
// message is structurally unreadable.
func Parse(raw []byte) (*Email, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	e := &Email{}
	h := mr.Header

	if subj, err := h.Subject(); err == nil {
		e.Subject = strings.TrimSpace(subj)
	}
	if date, err := h.Date(); err == nil {
		e.Date = date
	}
	if msgID, err := h.MessageID(); err == nil {
		e.MessageID = msgID
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		e.From = Address{Name: from[0].Name, Address: from[0].Address}
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, addr := range to {
			e.To = append(e.To, addr.Address)
		}
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) && p != nil {
				// Keep going with the raw bytes of this part.
			} else {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}

		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			readInlinePart(e, p, ph)
		case *mail.AttachmentHeader:
			readAttachmentPart(e, p, ph)
		}
	}

	return e, nil
}

// readInlinePart routes an inline part: text parts become the body, anything
// else (inline images and the like) is recorded as an attachment.
func readInlinePart(e *Email, p *mail.Part, h *mail.InlineHeader) {
	ct, params, err := h.ContentType()
	if err != nil {
		ct = "text/plain"
	}
	body, err := io.ReadAll(p.Body)
	if err != nil {
		return
	}

	switch {
	case strings.HasPrefix(ct, "text/plain"):
		e.Text += string(body)
	case strings.HasPrefix(ct, "text/html"):
		e.HTML += string(body)
	default:
		e.Attachments = append(e.Attachments, Attachment{
			Filename:    params["name"],
			ContentType: ct,
			ContentID:   contentID(h.Header),
			Data:        body,
		})
	}
}

func readAttachmentPart(e *Email, p *mail.Part, h *mail.AttachmentHeader) {
	ct, _, err := h.ContentType()
	if err != nil {
		ct = "application/octet-stream"
	}
	filename, _ := h.Filename()
	body, err := io.ReadAll(p.Body)
	if err != nil {
		return
	}
	e.Attachments = append(e.Attachments, Attachment{
		Filename:    filename,
		ContentType: ct,
		ContentID:   contentID(h.Header),
		Data:        body,
	})
}

// contentID extracts and unwraps a Content-Id header ("<id@host>" → "id@host").
func contentID(h message.Header) string {
	raw := strings.TrimSpace(h.Get("Content-Id"))
	if raw == "" {
		return ""
	}
	raw = strings.TrimPrefix(raw, "<")
	raw = strings.TrimSuffix(raw, ">")
	if decoded, err := new(mime.WordDecoder).DecodeHeader(raw); err == nil {
		return decoded
	}
	return raw
}
