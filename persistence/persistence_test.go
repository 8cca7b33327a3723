// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.InitLogging("error")
}

func newTestPersistence(t *testing.T) (*Persistence, string) {
	path := filepath.Join(t.TempDir(), "mxctl", "journal.db")
	p, err := NewPersistence(path)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, path
}

func boolPtr(b bool) *bool {
	return &b
}

func readEntry(id int64) domain.NewEntry {
	return domain.NewEntry{
		Kind:       domain.MarkRead,
		Target:     domain.MessageRef{Account: "Work", Mailbox: "INBOX", ID: id, MessageID: "<m@example.com>"},
		PreState:   domain.PreState{Read: boolPtr(false), Mailbox: "INBOX", Subject: "Hello"},
		Invertible: true,
	}
}

func TestRecordAndFinalize(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersistence(t)

	batch, err := p.OpenBatch(ctx, domain.MarkRead, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchOpen, batch.Status)
	assert.NotEmpty(t, batch.ID)

	first, err := p.Record(ctx, batch.ID, readEntry(101))
	require.NoError(t, err)
	second, err := p.Record(ctx, batch.ID, readEntry(102))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, 2, second.Seq)
	assert.Equal(t, domain.OutcomePending, first.Outcome)

	first.Outcome = domain.OutcomeSucceeded
	require.NoError(t, p.Finalize(ctx, first))
	assert.NotNil(t, first.FinalizedAt)

	second.Outcome = domain.OutcomeFailed
	second.Error = "boom"
	second.Invertible = false
	second.NonInvertibleReason = "operation failed"
	require.NoError(t, p.Finalize(ctx, second))

	require.NoError(t, p.CloseBatch(ctx, batch.ID, domain.BatchPartial))

	loaded, err := p.Batch(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, domain.BatchPartial, loaded.Status)
	assert.NotNil(t, loaded.ClosedAt)
	require.Len(t, loaded.Entries, 2)

	e := loaded.Entries[0]
	assert.Equal(t, domain.MarkRead, e.Kind)
	assert.Equal(t, domain.MessageRef{Account: "Work", Mailbox: "INBOX", ID: 101, MessageID: "<m@example.com>"}, e.Target)
	assert.Equal(t, domain.OutcomeSucceeded, e.Outcome)
	require.NotNil(t, e.PreState.Read)
	assert.False(t, *e.PreState.Read)
	assert.Equal(t, "Hello", e.PreState.Subject)
	assert.True(t, e.Invertible)

	e = loaded.Entries[1]
	assert.Equal(t, domain.OutcomeFailed, e.Outcome)
	assert.Equal(t, "boom", e.Error)
	assert.False(t, e.Invertible)
	assert.Equal(t, "operation failed", e.NonInvertibleReason)
}

func TestRecord_ClosedOrMissingBatch(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersistence(t)

	_, err := p.Record(ctx, "nope", readEntry(1))
	var notFound *domain.BatchNotFoundError
	assert.True(t, errors.As(err, &notFound))

	batch, err := p.OpenBatch(ctx, domain.MarkRead, "")
	require.NoError(t, err)
	require.NoError(t, p.CloseBatch(ctx, batch.ID, domain.BatchComplete))

	_, err = p.Record(ctx, batch.ID, readEntry(1))
	assert.Error(t, err)
}

func TestRecord_OperationKind(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersistence(t)

	batch, err := p.OpenBatch(ctx, domain.MarkRead, "")
	require.NoError(t, err)

	entry := readEntry(101)
	entry.Kind = domain.Undo
	_, err = p.Record(ctx, batch.ID, entry)
	assert.EqualError(t, err, `cannot record operation kind "undo"`)

	_, err = p.Record(ctx, batch.ID, readEntry(101))
	require.NoError(t, err)
	_, err = p.db.ExecContext(ctx, "UPDATE entries SET kind = 'archive' WHERE batch_id = ?", batch.ID)
	require.NoError(t, err)

	_, err = p.Batch(ctx, batch.ID)
	assert.ErrorContains(t, err, `has no valid operation kind: "archive"`)
}

func TestBatch_Unknown(t *testing.T) {
	p, _ := newTestPersistence(t)

	batch, err := p.Batch(context.Background(), "does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, batch)

	assert.Error(t, p.CloseBatch(context.Background(), "does-not-exist", domain.BatchComplete))
}

func TestLatestUndoable(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersistence(t)

	latest, err := p.LatestUndoable(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	older, err := p.OpenBatch(ctx, domain.Flag, "")
	require.NoError(t, err)
	require.NoError(t, p.CloseBatch(ctx, older.ID, domain.BatchComplete))

	newer, err := p.OpenBatch(ctx, domain.MarkRead, "")
	require.NoError(t, err)
	require.NoError(t, p.CloseBatch(ctx, newer.ID, domain.BatchComplete))

	latest, err = p.LatestUndoable(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	undo, err := p.OpenBatch(ctx, domain.Undo, newer.ID)
	require.NoError(t, err)
	require.NoError(t, p.CloseBatch(ctx, undo.ID, domain.BatchComplete))

	// The corrective batch itself is never a candidate.
	latest, err = p.LatestUndoable(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.ID, latest.ID)

	summaries, err := p.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, undo.ID, summaries[0].ID)
	assert.Equal(t, newer.ID, summaries[0].Corrects)
	assert.Equal(t, undo.ID, summaries[1].UndoneBy)
	assert.Empty(t, summaries[2].UndoneBy)
}

func TestListBatches_Counts(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersistence(t)

	summaries, err := p.ListBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	batch, err := p.OpenBatch(ctx, domain.MarkRead, "")
	require.NoError(t, err)
	for i, outcome := range []domain.Outcome{domain.OutcomeSucceeded, domain.OutcomeSucceeded, domain.OutcomeUnchanged, domain.OutcomeFailed, domain.OutcomeUnknown} {
		entry, err := p.Record(ctx, batch.ID, readEntry(int64(i+1)))
		require.NoError(t, err)
		entry.Outcome = outcome
		require.NoError(t, p.Finalize(ctx, entry))
	}
	require.NoError(t, p.CloseBatch(ctx, batch.ID, domain.BatchPartial))

	empty, err := p.OpenBatch(ctx, domain.Flag, "")
	require.NoError(t, err)
	require.NoError(t, p.CloseBatch(ctx, empty.ID, domain.BatchFailed))

	summaries, err = p.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, empty.ID, summaries[0].ID)
	assert.Equal(t, 0, summaries[0].Entries)

	s := summaries[1]
	assert.Equal(t, batch.ID, s.ID)
	assert.Equal(t, domain.MarkRead, s.Kind)
	assert.Equal(t, domain.BatchPartial, s.Status)
	assert.Equal(t, 5, s.Entries)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Unchanged)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Unknown)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPersistence(t)

	ids := []string{}
	for i := 0; i < 12; i++ {
		batch, err := p.OpenBatch(ctx, domain.MarkRead, "")
		require.NoError(t, err)
		_, err = p.Record(ctx, batch.ID, readEntry(int64(i+1)))
		require.NoError(t, err)
		require.NoError(t, p.CloseBatch(ctx, batch.ID, domain.BatchComplete))
		ids = append(ids, batch.ID)
	}

	pruned, err := p.Prune(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	summaries, err := p.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 10)
	assert.Equal(t, ids[11], summaries[0].ID)
	assert.Equal(t, ids[2], summaries[9].ID)

	gone, err := p.Batch(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, gone)

	var orphans int
	require.NoError(t, p.db.Get(&orphans, "SELECT COUNT(*) FROM entries WHERE batch_id IN (?, ?)", ids[0], ids[1]))
	assert.Equal(t, 0, orphans)

	pruned, err = p.Prune(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)

	_, err = p.Prune(ctx, -1)
	assert.Error(t, err)
}

func TestRecoverInterrupted(t *testing.T) {
	ctx := context.Background()
	p, path := newTestPersistence(t)

	batch, err := p.OpenBatch(ctx, domain.Move, "")
	require.NoError(t, err)
	done, err := p.Record(ctx, batch.ID, readEntry(1))
	require.NoError(t, err)
	done.Outcome = domain.OutcomeSucceeded
	require.NoError(t, p.Finalize(ctx, done))
	_, err = p.Record(ctx, batch.ID, readEntry(2))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// Reopening settles the batch the "crashed" run left open.
	reopened, err := NewPersistence(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Batch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchInterrupted, loaded.Status)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, domain.OutcomeSucceeded, loaded.Entries[0].Outcome)
	assert.Equal(t, domain.OutcomeUnknown, loaded.Entries[1].Outcome)
	assert.Equal(t, interruptedReason, loaded.Entries[1].Error)
	assert.NotNil(t, loaded.Entries[1].FinalizedAt)

	recovered, err := reopened.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	// Interrupted batches can still be undone.
	latest, err := reopened.LatestUndoable(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, latest.ID)
}
