// SPDX-License-Identifier: GPL-3.0-or-later
package bridge

import (
	"context"
	"fmt"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/script"
)

type operation struct {
	Kind   domain.OperationKind
	Target domain.MessageRef
	Params domain.OperationParams
}

// property toggles map to one message property and the value they set.
var properties = map[domain.OperationKind]struct {
	name  string
	value bool
}{
	domain.MarkRead:    {script.PropertyRead, true},
	domain.MarkUnread:  {script.PropertyRead, false},
	domain.Flag:        {script.PropertyFlagged, true},
	domain.Unflag:      {script.PropertyFlagged, false},
	domain.MarkJunk:    {script.PropertyJunk, true},
	domain.MarkNotJunk: {script.PropertyJunk, false},
}

// mutation returns the template and parameters that carry out op.
func (b *Bridge) mutation(op operation) (string, script.Params, error) {
	params := script.Params{
		"account":   op.Target.Account,
		"mailbox":   op.Target.Mailbox,
		"id":        op.Target.ID,
		"messageId": op.Target.MessageID,
	}

	if p, ok := properties[op.Kind]; ok {
		params["property"] = p.name
		params["value"] = p.value
		return script.SetProperty, params, nil
	}

	switch op.Kind {
	case domain.Move:
		params["destination"] = op.Params.Destination
		return script.MoveMessage, params, nil
	case domain.Delete:
		params["trash"] = b.configuration.trashFor(op.Target.Account)
		return script.DeleteMessage, params, nil
	case domain.RestoreFromTrash:
		params["destination"] = op.Params.Destination
		return script.RestoreMessage, params, nil
	}

	return "", nil, fmt.Errorf("operation %s does not change messages", op.Kind)
}

// render checks that op can be turned into a script without running it.
func (b *Bridge) render(op operation) error {
	template, params, err := b.mutation(op)
	if err != nil {
		return err
	}
	_, err = b.engine.Render(template, params)
	return err
}

// fallback is where a message may already be if op ran before.
func (b *Bridge) fallback(op operation) string {
	switch op.Kind {
	case domain.Move, domain.RestoreFromTrash:
		return op.Params.Destination
	case domain.Delete:
		return b.configuration.trashFor(op.Target.Account)
	}
	return ""
}

// capture reads the state op is about to change. The returned reference is
// op.Target completed with the id and Message-ID the message was found under.
func (b *Bridge) capture(ctx context.Context, op operation) (domain.PreState, domain.MessageRef, error) {
	target := op.Target

	records, err := b.Query(ctx, script.MessageState, script.Params{
		"account":   target.Account,
		"mailbox":   target.Mailbox,
		"id":        target.ID,
		"messageId": target.MessageID,
		"fallback":  b.fallback(op),
	})
	if err != nil {
		return domain.PreState{}, target, fmt.Errorf("could not capture state of %s: %w", target, err)
	}
	if len(records) != 1 {
		return domain.PreState{}, target, fmt.Errorf("could not capture state of %s: expected 1 record, got %d", target, len(records))
	}

	r := records[0]
	read, flagged, junk := r.Bool("read"), r.Bool("flagged"), r.Bool("junk")
	pre := domain.PreState{
		Read:      &read,
		Flagged:   &flagged,
		Junk:      &junk,
		Mailbox:   r.String("mailbox"),
		MessageID: r.String("messageId"),
		Subject:   r.String("subject"),
		Sender:    r.String("sender"),
	}
	if op.Kind == domain.Delete {
		pre.Trash = b.configuration.trashFor(target.Account)
	}

	if pre.Mailbox == target.Mailbox {
		target.ID = r.Int("id")
	}
	if target.MessageID == "" {
		target.MessageID = pre.MessageID
	}

	return pre, target, nil
}

// invertibility decides from the captured state whether op can be reversed.
func invertibility(op operation, pre domain.PreState) (bool, string) {
	switch op.Kind {
	case domain.Move:
		if pre.Mailbox == "" {
			return false, "original mailbox unknown"
		}
	case domain.Delete:
		if pre.Trash == "" {
			return false, fmt.Sprintf("account %s deletes permanently", op.Target.Account)
		}
		if pre.MessageID == "" {
			return false, "no Message-ID captured, the trash copy cannot be located"
		}
	case domain.RestoreFromTrash:
		if pre.MessageID == "" {
			return false, "no Message-ID captured, the restored message cannot be located"
		}
	}
	return true, ""
}

// inverse returns the operation that restores the state captured before
// entry ran.
func inverse(entry *domain.JournalEntry) (operation, error) {
	pre := entry.PreState
	target := entry.Target
	if target.MessageID == "" {
		target.MessageID = pre.MessageID
	}

	switch entry.Kind {
	case domain.MarkRead, domain.MarkUnread:
		return operation{Kind: restoreProperty(pre.Read, domain.MarkRead, domain.MarkUnread, entry.Kind), Target: target}, nil
	case domain.Flag, domain.Unflag:
		return operation{Kind: restoreProperty(pre.Flagged, domain.Flag, domain.Unflag, entry.Kind), Target: target}, nil
	case domain.MarkJunk, domain.MarkNotJunk:
		return operation{Kind: restoreProperty(pre.Junk, domain.MarkJunk, domain.MarkNotJunk, entry.Kind), Target: target}, nil

	case domain.Move:
		origin := pre.Mailbox
		if origin == "" {
			origin = target.Mailbox
		}
		return operation{
			Kind:   domain.Move,
			Target: target.In(entry.Params.Destination),
			Params: domain.OperationParams{Destination: origin},
		}, nil

	case domain.Delete:
		if pre.Trash == "" || target.MessageID == "" {
			return operation{}, &domain.NonInvertibleError{Seq: entry.Seq, Kind: entry.Kind, Reason: "the trash copy cannot be located"}
		}
		origin := pre.Mailbox
		if origin == "" {
			origin = target.Mailbox
		}
		restore := target.In(pre.Trash)
		restore.ID = 0
		return operation{
			Kind:   domain.RestoreFromTrash,
			Target: restore,
			Params: domain.OperationParams{Destination: origin},
		}, nil

	case domain.RestoreFromTrash:
		if target.MessageID == "" {
			return operation{}, &domain.NonInvertibleError{Seq: entry.Seq, Kind: entry.Kind, Reason: "the restored message cannot be located"}
		}
		restored := target.In(entry.Params.Destination)
		restored.ID = 0
		return operation{Kind: domain.Delete, Target: restored}, nil
	}

	return operation{}, &domain.NonInvertibleError{Seq: entry.Seq, Kind: entry.Kind, Reason: "unknown operation"}
}

// restoreProperty picks the toggle that sets a property back to its prior
// value. Without a captured value the opposite of kind is used.
func restoreProperty(prior *bool, on, off, kind domain.OperationKind) domain.OperationKind {
	if prior == nil {
		if kind == on {
			return off
		}
		return on
	}
	if *prior {
		return on
	}
	return off
}
