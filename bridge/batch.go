// SPDX-License-Identifier: GPL-3.0-or-later
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrawX/go-mxctl/decode"
	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/script"

	"github.com/sirupsen/logrus"
)

type ItemResult struct {
	Seq        int                  `json:"seq"`
	Target     domain.MessageRef    `json:"target"`
	Outcome    domain.Outcome       `json:"outcome"`
	Invertible bool                 `json:"invertible"`
	Reason     string               `json:"nonInvertibleReason,omitempty"`
	PreState   domain.PreState      `json:"preState"`
	Kind       domain.OperationKind `json:"kind"`
}

type ItemFailure struct {
	// Seq is 0 for targets that were never attempted.
	Seq     int               `json:"seq"`
	Target  domain.MessageRef `json:"target"`
	Outcome domain.Outcome    `json:"outcome"`
	Err     error             `json:"-"`
	Error   string            `json:"error"`
}

type BatchResult struct {
	BatchID   string               `json:"batchId"`
	Kind      domain.OperationKind `json:"kind"`
	Status    domain.BatchStatus   `json:"status"`
	Succeeded []ItemResult         `json:"succeeded"`
	Failed    []ItemFailure        `json:"failed"`
}

// attempt is the journaled result of one operation of a batch.
type attempt struct {
	op    operation
	entry *domain.JournalEntry
	err   error
}

// RunBatch applies kind to every target, strictly one after the other. Per
// target failures are reported in the result; the returned error is reserved
// for failures before the first target runs and for journal failures.
func (b *Bridge) RunBatch(ctx context.Context, kind domain.OperationKind, targets []domain.MessageRef, params domain.OperationParams) (*BatchResult, error) {
	if !kind.Mutating() {
		return nil, fmt.Errorf("operation %s cannot run as a batch", kind)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets given")
	}
	if len(targets) > b.configuration.MaxBatchSize {
		return nil, &domain.BatchTooLargeError{Requested: len(targets), Max: b.configuration.MaxBatchSize}
	}

	ops := make([]operation, len(targets))
	for i, t := range targets {
		ops[i] = operation{Kind: kind, Target: t, Params: params}
		if err := b.render(ops[i]); err != nil {
			return nil, err
		}
	}

	batch, err := b.journal.OpenBatch(ctx, kind, "")
	if err != nil {
		return nil, fmt.Errorf("could not open batch: %w", err)
	}

	attempts, status, err := b.run(ctx, batch, ops)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		BatchID:   batch.ID,
		Kind:      kind,
		Status:    status,
		Succeeded: []ItemResult{},
		Failed:    []ItemFailure{},
	}
	for _, a := range attempts {
		if a.err != nil {
			failure := ItemFailure{Target: a.op.Target, Outcome: domain.OutcomeFailed, Err: a.err, Error: a.err.Error()}
			if a.entry != nil {
				failure.Seq = a.entry.Seq
				failure.Target = a.entry.Target
				failure.Outcome = a.entry.Outcome
			}
			result.Failed = append(result.Failed, failure)
			continue
		}
		result.Succeeded = append(result.Succeeded, ItemResult{
			Seq:        a.entry.Seq,
			Kind:       a.entry.Kind,
			Target:     a.entry.Target,
			Outcome:    a.entry.Outcome,
			Invertible: a.entry.Invertible,
			Reason:     a.entry.NonInvertibleReason,
			PreState:   a.entry.PreState,
		})
	}

	b.l.WithFields(logrus.Fields{
		"batch":     batch.ID,
		"kind":      kind,
		"status":    status,
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	}).Info("Batch finished")

	return result, nil
}

// Mutate is a journaled batch of one.
func (b *Bridge) Mutate(ctx context.Context, kind domain.OperationKind, target domain.MessageRef, params domain.OperationParams) (*ItemResult, string, error) {
	result, err := b.RunBatch(ctx, kind, []domain.MessageRef{target}, params)
	if err != nil {
		return nil, "", err
	}
	if len(result.Failed) > 0 {
		return nil, result.BatchID, result.Failed[0].Err
	}
	return &result.Succeeded[0], result.BatchID, nil
}

// run performs ops in order inside batch and closes it. Once ctx is done the
// remaining operations are reported as failed without being attempted.
func (b *Bridge) run(ctx context.Context, batch *domain.Batch, ops []operation) ([]attempt, domain.BatchStatus, error) {
	attempts := make([]attempt, 0, len(ops))
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, attempt{op: op, err: fmt.Errorf("not attempted: %w", err)})
			continue
		}

		a, err := b.perform(ctx, batch.ID, op)
		if err != nil {
			return nil, "", err
		}
		attempts = append(attempts, a)
	}

	done := 0
	for _, a := range attempts {
		if a.err == nil {
			done++
		}
	}
	status := domain.BatchPartial
	switch done {
	case len(attempts):
		status = domain.BatchComplete
	case 0:
		status = domain.BatchFailed
	}

	closeCtx := context.WithoutCancel(ctx)
	if err := b.journal.CloseBatch(closeCtx, batch.ID, status); err != nil {
		return nil, "", fmt.Errorf("could not close batch %s: %w", batch.ID, err)
	}

	pruned, err := b.journal.Prune(closeCtx, b.configuration.RetainBatches)
	if err != nil {
		b.l.WithField("error", err).Warn("Could not prune journal")
	} else if pruned > 0 {
		b.l.WithField("pruned", pruned).Debug("Pruned old batches")
	}

	return attempts, status, nil
}

// perform runs one operation write-ahead: the journal entry exists before
// the script is issued and is finalized whatever happens to the script. The
// returned error is a journal failure that must abort the batch.
func (b *Bridge) perform(ctx context.Context, batchID string, op operation) (attempt, error) {
	logger := b.l.WithFields(logrus.Fields{"batch": batchID, "kind": op.Kind, "target": op.Target})

	pre, target, captureErr := b.capture(ctx, op)

	invertible, reason := false, "state could not be captured"
	if captureErr == nil {
		invertible, reason = invertibility(op, pre)
	}

	entry, err := b.journal.Record(context.WithoutCancel(ctx), batchID, domain.NewEntry{
		Kind:                op.Kind,
		Target:              target,
		Params:              op.Params,
		PreState:            pre,
		Invertible:          invertible,
		NonInvertibleReason: reason,
	})
	if err != nil {
		return attempt{}, fmt.Errorf("could not journal %s of %s: %w", op.Kind, target, err)
	}

	var itemErr error
	if captureErr != nil {
		entry.Outcome = domain.OutcomeFailed
		itemErr = captureErr
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		entry.Outcome = domain.OutcomeFailed
		itemErr = fmt.Errorf("not attempted: %w", ctxErr)
	} else {
		op.Target = target
		entry.Outcome, itemErr = b.execute(ctx, op)
	}

	if itemErr != nil {
		entry.Error = itemErr.Error()
	}
	if entry.Outcome == domain.OutcomeFailed {
		entry.Invertible = false
		entry.NonInvertibleReason = "operation failed"
	}

	if err := b.journal.Finalize(context.WithoutCancel(ctx), entry); err != nil {
		return attempt{}, fmt.Errorf("could not finalize %s of %s: %w", op.Kind, target, err)
	}

	logger.WithFields(logrus.Fields{"outcome": entry.Outcome, "seq": entry.Seq}).Debug("Performed operation")
	return attempt{op: op, entry: entry, err: itemErr}, nil
}

// execute issues the mutation script once. A timeout or interrupt leaves the
// outcome unknown since the application may have applied the change anyway.
func (b *Bridge) execute(ctx context.Context, op operation) (domain.Outcome, error) {
	template, params, err := b.mutation(op)
	if err != nil {
		return domain.OutcomeFailed, err
	}
	rendered, err := b.engine.Render(template, params)
	if err != nil {
		return domain.OutcomeFailed, err
	}

	raw, err := b.executor.Execute(ctx, rendered, b.configuration.SingleTimeout)
	if err != nil {
		var timeoutErr *domain.TimeoutError
		if errors.As(err, &timeoutErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.OutcomeUnknown, err
		}
		return domain.OutcomeFailed, err
	}

	records, err := decode.Decode(raw.Stdout, script.StatusSchema)
	if err != nil {
		return domain.OutcomeUnknown, fmt.Errorf("%s: %w", template, err)
	}
	if len(records) != 1 {
		return domain.OutcomeUnknown, fmt.Errorf("%s: expected a status, got %d records", template, len(records))
	}

	switch status := records[0].String("status"); status {
	case script.StatusChanged:
		return domain.OutcomeSucceeded, nil
	case script.StatusUnchanged:
		return domain.OutcomeUnchanged, nil
	default:
		return domain.OutcomeUnknown, fmt.Errorf("%s: unexpected status %q", template, status)
	}
}
