// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bufio"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParseHeaders parses a raw header block as returned by Mail, decoding
// encoded words in any charset.
func ParseHeaders(raw string) ([]Header, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimRight(raw, "\n") + "\n\n"

	h, err := textproto.ReadHeader(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("could not parse headers: %w", err)
	}

	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}

	headers := []Header{}
	fields := h.Fields()
	for fields.Next() {
		value, err := dec.DecodeHeader(fields.Value())
		if err != nil {
			value = fields.Value()
		}
		headers = append(headers, Header{Key: fields.Key(), Value: value})
	}

	return headers, nil
}

// ExtractEmail returns the bare address of a sender like "Name <a@b.c>".
func ExtractEmail(sender string) string {
	addr, err := gomail.ParseAddress(sender)
	if err == nil {
		return strings.ToLower(addr.Address)
	}

	// Mail sometimes hands out senders that are not valid RFC 5322.
	if start, end := strings.LastIndex(sender, "<"), strings.LastIndex(sender, ">"); start >= 0 && end > start {
		return strings.ToLower(strings.TrimSpace(sender[start+1 : end]))
	}
	return strings.ToLower(strings.TrimSpace(sender))
}

var replyPrefix = regexp.MustCompile(`(?i)^\s*(re|fwd?|aw|sv|vs|wg)\s*(\[\d+\])?\s*:\s*`)

// NormalizeSubject strips any number of reply and forward prefixes.
func NormalizeSubject(subject string) string {
	for {
		stripped := replyPrefix.ReplaceAllString(subject, "")
		if stripped == subject {
			return strings.TrimSpace(subject)
		}
		subject = stripped
	}
}

func ShortSubject(subject string) string {
	runes := []rune(subject)
	if len(runes) > 30 {
		subject = string(runes[:30]) + "..."
	}
	return subject
}
