// SPDX-License-Identifier: GPL-3.0-or-later

//go:generate mockgen -destination=mocks/journal.go -package=mocks . Journal
package domain

import (
	"context"
	"time"
)

type Outcome string

const (
	OutcomePending   = Outcome("pending")
	OutcomeSucceeded = Outcome("succeeded")
	OutcomeUnchanged = Outcome("unchanged")
	OutcomeFailed    = Outcome("failed")
	OutcomeUnknown   = Outcome("unknown")
)

// Done reports whether the outcome is a completed call, changed or not.
func (o Outcome) Done() bool {
	return o == OutcomeSucceeded || o == OutcomeUnchanged
}

// Settled reports whether the outcome can be trusted without verification.
func (o Outcome) Settled() bool {
	return o.Done() || o == OutcomeFailed
}

type BatchStatus string

const (
	BatchOpen        = BatchStatus("open")
	BatchComplete    = BatchStatus("complete")
	BatchPartial     = BatchStatus("partial")
	BatchFailed      = BatchStatus("failed")
	BatchInterrupted = BatchStatus("interrupted")
)

type JournalEntry struct {
	ID                  int64
	BatchID             string
	Seq                 int
	Kind                OperationKind
	Target              MessageRef
	Params              OperationParams
	PreState            PreState
	Invertible          bool
	NonInvertibleReason string
	Outcome             Outcome
	Error               string
	CreatedAt           time.Time
	FinalizedAt         *time.Time
}

// NewEntry is the data needed to journal an operation before it is issued.
type NewEntry struct {
	Kind                OperationKind
	Target              MessageRef
	Params              OperationParams
	PreState            PreState
	Invertible          bool
	NonInvertibleReason string
}

type Batch struct {
	ID        string
	Kind      OperationKind
	Corrects  string
	Status    BatchStatus
	CreatedAt time.Time
	ClosedAt  *time.Time
	Entries   []*JournalEntry
}

type BatchSummary struct {
	ID        string        `json:"id"`
	Kind      OperationKind `json:"kind"`
	Corrects  string        `json:"corrects,omitempty"`
	UndoneBy  string        `json:"undoneBy,omitempty"`
	Status    BatchStatus   `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	Entries   int           `json:"entries"`
	Succeeded int           `json:"succeeded"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Unknown   int           `json:"unknown"`
}

// Journal is the persistent, append-only undo log. It assumes a single writer.
type Journal interface {
	OpenBatch(ctx context.Context, kind OperationKind, corrects string) (*Batch, error)
	// Record must be called before the mutation is issued; the entry starts as pending.
	Record(ctx context.Context, batchID string, entry NewEntry) (*JournalEntry, error)
	// Finalize persists Outcome, Error and invertibility of the entry.
	Finalize(ctx context.Context, entry *JournalEntry) error
	CloseBatch(ctx context.Context, batchID string, status BatchStatus) error

	// Batch loads a batch with its entries ordered by sequence number.
	Batch(ctx context.Context, id string) (*Batch, error)
	// LatestUndoable returns the newest non-corrective batch that has not been undone.
	LatestUndoable(ctx context.Context) (*Batch, error)
	ListBatches(ctx context.Context) ([]*BatchSummary, error)

	Prune(ctx context.Context, keep int) (int, error)
	RecoverInterrupted(ctx context.Context) (int, error)
	Close() error
}
