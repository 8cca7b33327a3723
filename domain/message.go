// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "fmt"

// MessageRef identifies one message within one mailbox of one account.
// MessageID carries the RFC 822 Message-ID header when known and is used as a
// fallback locator once the application has reassigned the numeric id.
type MessageRef struct {
	Account   string `json:"account"`
	Mailbox   string `json:"mailbox"`
	ID        int64  `json:"id"`
	MessageID string `json:"messageId,omitempty"`
}

func (r MessageRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Account, r.Mailbox, r.ID)
}

// In returns a copy of the reference pointing at another mailbox of the same account.
func (r MessageRef) In(mailbox string) MessageRef {
	r.Mailbox = mailbox
	return r
}

type OperationKind string

const (
	MarkRead         = OperationKind("mark-read")
	MarkUnread       = OperationKind("mark-unread")
	Flag             = OperationKind("flag")
	Unflag           = OperationKind("unflag")
	MarkJunk         = OperationKind("junk")
	MarkNotJunk      = OperationKind("not-junk")
	Move             = OperationKind("move")
	Delete           = OperationKind("delete")
	RestoreFromTrash = OperationKind("restore-from-trash")

	// Undo is the kind of corrective batches, never of single entries.
	Undo = OperationKind("undo")
)

var mutatingKinds = []OperationKind{
	MarkRead, MarkUnread, Flag, Unflag, MarkJunk, MarkNotJunk, Move, Delete, RestoreFromTrash,
}

func (k OperationKind) Mutating() bool {
	for _, m := range mutatingKinds {
		if k == m {
			return true
		}
	}
	return false
}

func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(s)
	if k.Mutating() || k == Undo {
		return k, nil
	}
	return "", fmt.Errorf("unknown operation kind %q", s)
}

// OperationParams holds the kind specific arguments of a mutation. Destination
// is the target mailbox of a move and the original mailbox of a restore.
type OperationParams struct {
	Destination string `json:"destination,omitempty"`
}

// PreState is what is captured right before a mutation to be able to reverse it.
type PreState struct {
	Read      *bool  `json:"read,omitempty"`
	Flagged   *bool  `json:"flagged,omitempty"`
	Junk      *bool  `json:"junk,omitempty"`
	Mailbox   string `json:"mailbox,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Trash     string `json:"trash,omitempty"`
}
