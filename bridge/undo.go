// SPDX-License-Identifier: GPL-3.0-or-later
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/script"

	"github.com/sirupsen/logrus"
)

type UndoStatus string

const (
	Reverted        = UndoStatus("reverted")
	AlreadyReverted = UndoStatus("already-reverted")
	NonInvertible   = UndoStatus("non-invertible")
	Skipped         = UndoStatus("skipped")
	UndoFailed      = UndoStatus("failed")
	UndoUnknown     = UndoStatus("unknown")
)

type UndoEntry struct {
	Seq    int                  `json:"seq"`
	Kind   domain.OperationKind `json:"kind"`
	Target domain.MessageRef    `json:"target"`
	Status UndoStatus           `json:"status"`
	// Unverified marks entries whose original outcome was never confirmed.
	Unverified bool   `json:"unverified,omitempty"`
	Error      string `json:"error,omitempty"`
}

type UndoResult struct {
	BatchID string `json:"batchId"`
	// CorrectiveBatchID is empty when no entry needed an inverse operation.
	CorrectiveBatchID string             `json:"correctiveBatchId,omitempty"`
	Status            domain.BatchStatus `json:"status,omitempty"`
	Entries           []UndoEntry        `json:"entries"`
}

// Undo reverts the batch with id batchID, or the most recent batch that is
// neither corrective nor undone yet when batchID is empty. The inverse
// operations run as a new batch pointing back at the original one.
func (b *Bridge) Undo(ctx context.Context, batchID string) (*UndoResult, error) {
	var batch *domain.Batch
	var err error
	if batchID == "" {
		batch, err = b.journal.LatestUndoable(ctx)
	} else {
		batch, err = b.journal.Batch(ctx, batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load batch: %w", err)
	}
	if batch == nil {
		return nil, &domain.BatchNotFoundError{ID: batchID}
	}
	if batch.Status == domain.BatchOpen {
		return nil, fmt.Errorf("batch %s is still running", batch.ID)
	}

	logger := b.l.WithFields(logrus.Fields{"batch": batch.ID, "kind": batch.Kind})

	result := &UndoResult{BatchID: batch.ID, Entries: []UndoEntry{}}
	ops := []operation{}
	// index into result.Entries for every op
	opEntries := []int{}

	for i := len(batch.Entries) - 1; i >= 0; i-- {
		entry := batch.Entries[i]
		u := UndoEntry{
			Seq:        entry.Seq,
			Kind:       entry.Kind,
			Target:     entry.Target,
			Unverified: !entry.Outcome.Settled(),
		}

		switch {
		case entry.Outcome == domain.OutcomeFailed:
			u.Status = Skipped
			u.Error = entry.Error
		case entry.Outcome == domain.OutcomeUnchanged:
			u.Status = AlreadyReverted
		case !entry.Invertible:
			u.Status = NonInvertible
			u.Error = (&domain.NonInvertibleError{Seq: entry.Seq, Kind: entry.Kind, Reason: entry.NonInvertibleReason}).Error()
		default:
			op, err := inverse(entry)
			if err != nil {
				u.Status = NonInvertible
				u.Error = err.Error()
				break
			}
			// Mailbox names in the journal were validated when they were recorded.
			b.engine.Allow(script.VocabMailbox, op.Target.Mailbox)
			if op.Params.Destination != "" {
				b.engine.Allow(script.VocabMailbox, op.Params.Destination)
			}
			if err := b.render(op); err != nil {
				u.Status = UndoFailed
				u.Error = err.Error()
				break
			}
			ops = append(ops, op)
			opEntries = append(opEntries, len(result.Entries))
		}

		result.Entries = append(result.Entries, u)
	}

	if len(ops) == 0 {
		logger.Info("Nothing to revert")
		return result, nil
	}

	corrective, err := b.journal.OpenBatch(ctx, domain.Undo, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("could not open corrective batch: %w", err)
	}
	result.CorrectiveBatchID = corrective.ID

	attempts, status, err := b.run(ctx, corrective, ops)
	if err != nil {
		return nil, err
	}
	result.Status = status

	for i, a := range attempts {
		u := &result.Entries[opEntries[i]]
		switch {
		case a.err == nil && a.entry.Outcome == domain.OutcomeUnchanged:
			u.Status = AlreadyReverted
		case a.err == nil:
			u.Status = Reverted
		case a.op.Kind == domain.RestoreFromTrash && errors.Is(a.err, domain.ErrMessageNotFound):
			u.Status = NonInvertible
			u.Error = (&domain.NonInvertibleError{Seq: u.Seq, Kind: u.Kind, Reason: "the trash copy cannot be located"}).Error()
		case a.entry != nil && a.entry.Outcome == domain.OutcomeUnknown:
			u.Status = UndoUnknown
			u.Error = a.err.Error()
		default:
			u.Status = UndoFailed
			u.Error = a.err.Error()
		}
	}

	logger.WithFields(logrus.Fields{"corrective": corrective.ID, "status": status}).Info("Batch reverted")
	return result, nil
}

// ListBatches returns the journaled batches, newest first.
func (b *Bridge) ListBatches(ctx context.Context) ([]*domain.BatchSummary, error) {
	summaries, err := b.journal.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list batches: %w", err)
	}
	return summaries, nil
}
