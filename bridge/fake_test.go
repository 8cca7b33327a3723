// SPDX-License-Identifier: GPL-3.0-or-later
package bridge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/CrawX/go-mxctl/decode"
	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/script"
)

type fakeMessage struct {
	id        int64
	account   string
	mailbox   string
	read      bool
	flagged   bool
	junk      bool
	messageID string
	subject   string
	sender    string
}

// fakeMail is a stateful stand-in for the mail application. It reads the
// template name and the bound parameters from the rendered script.
type fakeMail struct {
	mu       sync.Mutex
	messages []*fakeMessage
	nextID   int64
	trash    string

	// calls holds the template name of every executed script.
	calls []string

	// Mutations of these ids fail or time out.
	fail    map[int64]bool
	timeout map[int64]bool

	// onMutation runs after every mutation script.
	onMutation func(template string)

	// scrub is set while the running script replaces separators in text.
	scrub bool
}

func newFakeMail() *fakeMail {
	return &fakeMail{
		nextID:  1000,
		trash:   DefaultTrash,
		fail:    map[int64]bool{},
		timeout: map[int64]bool{},
	}
}

func (f *fakeMail) add(id int64, mailbox string, read bool) *fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := &fakeMessage{
		id:        id,
		account:   "Work",
		mailbox:   mailbox,
		read:      read,
		messageID: fmt.Sprintf("<%d@example.com>", id),
		subject:   fmt.Sprintf("Message %d", id),
		sender:    fmt.Sprintf("Sender %d <s%d@example.com>", id, id),
	}
	f.messages = append(f.messages, m)
	return m
}

type fakeState struct {
	Mailbox string
	Read    bool
	Flagged bool
	Junk    bool
}

// snapshot keys messages by Message-ID since deletes reassign ids.
func (f *fakeMail) snapshot() map[string]fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := map[string]fakeState{}
	for _, m := range f.messages {
		s[m.messageID] = fakeState{m.mailbox, m.read, m.flagged, m.junk}
	}
	return s
}

func (f *fakeMail) get(messageID string) *fakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range f.messages {
		if m.messageID == messageID {
			return m
		}
	}
	return nil
}

func (f *fakeMail) remove(messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.messageID != messageID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
}

func (f *fakeMail) count(template string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == template {
			n++
		}
	}
	return n
}

func notFound(what interface{}) error {
	return &domain.AutomationError{
		ExitCode: 1,
		Stderr:   fmt.Sprintf("execution error: Mail got an error: Can’t get message %v. (-1728)\n", what),
	}
}

func records(rows ...[]string) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r, decode.FieldSeparator))
		b.WriteString(decode.RecordSeparator)
	}
	b.WriteString("\n")
	return b.String()
}

func (f *fakeMail) Execute(ctx context.Context, rendered string, timeout time.Duration) (*domain.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	template, p := parseScript(rendered)

	f.mu.Lock()
	f.calls = append(f.calls, template)
	f.scrub = strings.Contains(rendered, "text item delimiters to {character id 30, character id 31}")
	stdout, err := f.handle(template, p, timeout)
	hook := f.onMutation
	f.mu.Unlock()

	if hook != nil && (template == script.SetProperty || template == script.MoveMessage || template == script.DeleteMessage || template == script.RestoreMessage) {
		hook(template)
	}

	if err != nil {
		return nil, err
	}
	return &domain.RawResult{Stdout: stdout, Elapsed: time.Millisecond}, nil
}

func (f *fakeMail) find(account, mailbox string, id int64, messageID string) *fakeMessage {
	if id > 0 {
		for _, m := range f.messages {
			if m.account == account && m.mailbox == mailbox && m.id == id {
				return m
			}
		}
	}
	if messageID != "" {
		for _, m := range f.messages {
			if m.account == account && m.mailbox == mailbox && m.messageID == messageID {
				return m
			}
		}
	}
	return nil
}

func (f *fakeMail) handle(template string, p map[string]interface{}, timeout time.Duration) (string, error) {
	str := func(k string) string { s, _ := p[k].(string); return s }
	num := func(k string) int64 { n, _ := p[k].(int64); return n }
	flag := func(k string) bool { b, _ := p[k].(bool); return b }

	account, mailbox, id, mid := str("Account"), str("Mailbox"), num("ID"), str("MessageID")

	mutation := func() error {
		if f.fail[id] {
			return &domain.AutomationError{ExitCode: 1, Stderr: "execution error: Mail got an error: AppleEvent timed out. (-1712)\n"}
		}
		if f.timeout[id] {
			return &domain.TimeoutError{Timeout: timeout}
		}
		return nil
	}
	txt := func(v string) string {
		if !f.scrub {
			return v
		}
		return strings.NewReplacer(decode.RecordSeparator, " ", decode.FieldSeparator, " ").Replace(v)
	}
	matches := func(m *fakeMessage) bool {
		if m.account != account || m.mailbox != mailbox {
			return false
		}
		if flag("UnreadOnly") && m.read {
			return false
		}
		return str("Sender") == "" || strings.Contains(m.sender, str("Sender"))
	}
	changed := func(c bool) (string, error) {
		if c {
			return script.StatusChanged + "\n", nil
		}
		return script.StatusUnchanged + "\n", nil
	}

	switch template {
	case script.ListAccounts:
		return records([]string{"Work", "true", "me@work.example"}, []string{"Home", "true", "me@home.example"}), nil

	case script.ListMailboxes:
		seen := map[string]int{}
		for _, m := range f.messages {
			if m.account == account {
				if _, ok := seen[m.mailbox]; !ok {
					seen[m.mailbox] = 0
				}
				if !m.read {
					seen[m.mailbox]++
				}
			}
		}
		names := []string{}
		for n := range seen {
			names = append(names, n)
		}
		sort.Strings(names)
		rows := [][]string{}
		for _, n := range names {
			rows = append(rows, []string{txt(n), strconv.Itoa(seen[n])})
		}
		return records(rows...), nil

	case script.ListMessages:
		rows := [][]string{}
		for _, m := range f.messages {
			if int64(len(rows)) >= num("Limit") {
				break
			}
			if !matches(m) {
				continue
			}
			rows = append(rows, []string{
				strconv.FormatInt(m.id, 10), txt(m.subject), txt(m.sender), "2026-01-15T10:30:00",
				strconv.FormatBool(m.read), strconv.FormatBool(m.flagged),
			})
		}
		return records(rows...), nil

	case script.CountMessages:
		total := 0
		for _, m := range f.messages {
			if matches(m) {
				total++
			}
		}
		return records([]string{strconv.Itoa(total)}), nil

	case script.MailboxStats:
		total, unread := 0, 0
		for _, m := range f.messages {
			if m.account == account && m.mailbox == mailbox {
				total++
				if !m.read {
					unread++
				}
			}
		}
		return records([]string{strconv.Itoa(total), strconv.Itoa(unread)}), nil

	case script.MessageState:
		m := f.find(account, mailbox, id, mid)
		if m == nil && str("Fallback") != "" {
			m = f.find(account, str("Fallback"), id, mid)
		}
		if m == nil {
			return "", notFound(id)
		}
		return records([]string{
			strconv.FormatInt(m.id, 10), m.mailbox,
			strconv.FormatBool(m.read), strconv.FormatBool(m.flagged), strconv.FormatBool(m.junk),
			txt(m.messageID), txt(m.subject), txt(m.sender),
		}), nil

	case script.SetProperty:
		m := f.find(account, mailbox, id, mid)
		if m == nil {
			return "", notFound(id)
		}
		if err := mutation(); err != nil {
			return "", err
		}
		value := flag("Value")
		var field *bool
		switch str("Property") {
		case script.PropertyRead:
			field = &m.read
		case script.PropertyFlagged:
			field = &m.flagged
		case script.PropertyJunk:
			field = &m.junk
		}
		if *field == value {
			return changed(false)
		}
		*field = value
		return changed(true)

	case script.MoveMessage:
		destination := str("Destination")
		if mailbox == destination {
			return changed(false)
		}
		m := f.find(account, mailbox, id, mid)
		if m == nil {
			if mid != "" && f.find(account, destination, 0, mid) != nil {
				return changed(false)
			}
			return "", notFound(id)
		}
		if err := mutation(); err != nil {
			return "", err
		}
		m.mailbox = destination
		return changed(true)

	case script.DeleteMessage:
		m := f.find(account, mailbox, id, mid)
		if m == nil {
			if str("Trash") != "" && mid != "" && f.find(account, str("Trash"), 0, mid) != nil {
				return changed(false)
			}
			return "", notFound(id)
		}
		if err := mutation(); err != nil {
			return "", err
		}
		m.mailbox = f.trash
		f.nextID++
		m.id = f.nextID
		return changed(true)

	case script.RestoreMessage:
		destination := str("Destination")
		m := f.find(account, mailbox, id, mid)
		if m == nil {
			if f.find(account, destination, 0, mid) != nil {
				return changed(false)
			}
			return "", notFound(mid)
		}
		m.mailbox = destination
		return changed(true)
	}

	return "", fmt.Errorf("fake mail does not know %s", template)
}

// parseScript extracts the template name and the "set pName to literal"
// prologue of a rendered script.
func parseScript(rendered string) (string, map[string]interface{}) {
	lines := strings.Split(rendered, "\n")
	template := strings.TrimPrefix(lines[0], "-- ")

	params := map[string]interface{}{}
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line, "set p") {
			continue
		}
		name, literal, ok := strings.Cut(strings.TrimPrefix(line, "set p"), " to ")
		if !ok {
			continue
		}
		params[name] = parseLiteral(literal)
	}
	return template, params
}

func parseLiteral(literal string) interface{} {
	switch {
	case literal == "true":
		return true
	case literal == "false":
		return false
	case strings.HasPrefix(literal, `"`):
		s, err := strconv.Unquote(literal)
		if err != nil {
			return literal
		}
		return s
	}
	n, _ := strconv.ParseInt(literal, 10, 64)
	return n
}
