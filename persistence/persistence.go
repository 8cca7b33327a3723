// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/log"
	"github.com/CrawX/go-mxctl/persistence/migrations"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

const interruptedReason = "interrupted before the outcome was recorded, verify before trusting"

// Persistence is the sqlite backed operation journal.
type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger

	now func() time.Time
}

var _ domain.Journal = (*Persistence)(nil)

func NewPersistence(path string) (*Persistence, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", path).Debug("Connected")

	migrationSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations.FS,
		Root:       migrations.Root,
	}

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}
	// Another mxctl process may hold the write lock for the length of a batch.
	_, err = db.Exec(`PRAGMA busy_timeout=5000`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not set busy timeout: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrationSource, migrate.Up)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	p := &Persistence{
		db:  db,
		l:   l,
		now: time.Now,
	}

	if _, err := p.RecoverInterrupted(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return p, nil
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Debug("Disconnected")
	return nil
}

type batchRow struct {
	Num       int64         `db:"num"`
	ID        string        `db:"id"`
	Kind      string        `db:"kind"`
	Corrects  string        `db:"corrects"`
	Status    string        `db:"status"`
	CreatedAt int64         `db:"created_at"`
	ClosedAt  sql.NullInt64 `db:"closed_at"`
}

func (r *batchRow) batch() *domain.Batch {
	return &domain.Batch{
		ID:        r.ID,
		Kind:      domain.OperationKind(r.Kind),
		Corrects:  r.Corrects,
		Status:    domain.BatchStatus(r.Status),
		CreatedAt: time.Unix(0, r.CreatedAt),
		ClosedAt:  fromNullNanos(r.ClosedAt),
		Entries:   []*domain.JournalEntry{},
	}
}

type entryRow struct {
	ID                  int64         `db:"id"`
	BatchID             string        `db:"batch_id"`
	Seq                 int           `db:"seq"`
	Kind                string        `db:"kind"`
	Account             string        `db:"account"`
	Mailbox             string        `db:"mailbox"`
	MessageNum          int64         `db:"message_num"`
	MessageID           string        `db:"message_id"`
	Params              string        `db:"params"`
	PreState            string        `db:"pre_state"`
	Invertible          bool          `db:"invertible"`
	NonInvertibleReason string        `db:"non_invertible_reason"`
	Outcome             string        `db:"outcome"`
	Error               string        `db:"error"`
	CreatedAt           int64         `db:"created_at"`
	FinalizedAt         sql.NullInt64 `db:"finalized_at"`
}

func (r *entryRow) entry() (*domain.JournalEntry, error) {
	kind, err := domain.ParseOperationKind(r.Kind)
	if err != nil || !kind.Mutating() {
		return nil, fmt.Errorf("entry %d has no valid operation kind: %q", r.ID, r.Kind)
	}

	e := &domain.JournalEntry{
		ID:      r.ID,
		BatchID: r.BatchID,
		Seq:     r.Seq,
		Kind:    kind,
		Target: domain.MessageRef{
			Account:   r.Account,
			Mailbox:   r.Mailbox,
			ID:        r.MessageNum,
			MessageID: r.MessageID,
		},
		Invertible:          r.Invertible,
		NonInvertibleReason: r.NonInvertibleReason,
		Outcome:             domain.Outcome(r.Outcome),
		Error:               r.Error,
		CreatedAt:           time.Unix(0, r.CreatedAt),
		FinalizedAt:         fromNullNanos(r.FinalizedAt),
	}

	if err := json.Unmarshal([]byte(r.Params), &e.Params); err != nil {
		return nil, fmt.Errorf("could not decode params of entry %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.PreState), &e.PreState); err != nil {
		return nil, fmt.Errorf("could not decode pre-state of entry %d: %w", r.ID, err)
	}

	return e, nil
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}

func (p *Persistence) OpenBatch(ctx context.Context, kind domain.OperationKind, corrects string) (*domain.Batch, error) {
	batch := &domain.Batch{
		ID:        uuid.NewString(),
		Kind:      kind,
		Corrects:  corrects,
		Status:    domain.BatchOpen,
		CreatedAt: p.now(),
		Entries:   []*domain.JournalEntry{},
	}

	_, err := p.db.ExecContext(
		ctx,
		"INSERT INTO batches (id, kind, corrects, status, created_at) VALUES (?, ?, ?, ?, ?)",
		batch.ID, string(batch.Kind), batch.Corrects, string(batch.Status), batch.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not save batch: %w", err)
	}

	p.l.WithFields(logrus.Fields{"batch": batch.ID, "kind": kind, "corrects": corrects}).Debug("Opened batch")
	return batch, nil
}

func (p *Persistence) Record(ctx context.Context, batchID string, newEntry domain.NewEntry) (*domain.JournalEntry, error) {
	if !newEntry.Kind.Mutating() {
		return nil, fmt.Errorf("cannot record operation kind %q", newEntry.Kind)
	}

	params, err := json.Marshal(newEntry.Params)
	if err != nil {
		return nil, fmt.Errorf("could not encode params: %w", err)
	}
	preState, err := json.Marshal(newEntry.PreState)
	if err != nil {
		return nil, fmt.Errorf("could not encode pre-state: %w", err)
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not start transaction: %w", err)
	}

	var status string
	err = tx.GetContext(ctx, &status, "SELECT status FROM batches WHERE id = ?", batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, txEnd(tx, &domain.BatchNotFoundError{ID: batchID})
	}
	if err != nil {
		return nil, txEnd(tx, fmt.Errorf("could not query db: %w", err))
	}
	if domain.BatchStatus(status) != domain.BatchOpen {
		return nil, txEnd(tx, fmt.Errorf("batch %s is %s, cannot record into it", batchID, status))
	}

	var seq int
	err = tx.GetContext(ctx, &seq, "SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE batch_id = ?", batchID)
	if err != nil {
		return nil, txEnd(tx, fmt.Errorf("could not query db: %w", err))
	}

	entry := &domain.JournalEntry{
		BatchID:             batchID,
		Seq:                 seq,
		Kind:                newEntry.Kind,
		Target:              newEntry.Target,
		Params:              newEntry.Params,
		PreState:            newEntry.PreState,
		Invertible:          newEntry.Invertible,
		NonInvertibleReason: newEntry.NonInvertibleReason,
		Outcome:             domain.OutcomePending,
		CreatedAt:           p.now(),
	}

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO entries (batch_id, seq, kind, account, mailbox, message_num, message_id, params, pre_state, invertible, non_invertible_reason, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, seq, string(entry.Kind),
		entry.Target.Account, entry.Target.Mailbox, entry.Target.ID, entry.Target.MessageID,
		string(params), string(preState),
		entry.Invertible, entry.NonInvertibleReason,
		string(entry.Outcome), entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, txEnd(tx, fmt.Errorf("could not save entry: %w", err))
	}

	entry.ID, err = result.LastInsertId()
	if err != nil {
		return nil, txEnd(tx, fmt.Errorf("could not get entry id: %w", err))
	}

	if err := txEnd(tx, nil); err != nil {
		return nil, err
	}

	p.l.WithFields(logrus.Fields{"batch": batchID, "seq": seq, "kind": entry.Kind, "target": entry.Target}).Debug("Recorded entry")
	return entry, nil
}

func (p *Persistence) Finalize(ctx context.Context, entry *domain.JournalEntry) error {
	finalized := p.now()

	result, err := p.db.ExecContext(
		ctx,
		"UPDATE entries SET outcome = ?, error = ?, invertible = ?, non_invertible_reason = ?, finalized_at = ? WHERE id = ?",
		string(entry.Outcome), entry.Error, entry.Invertible, entry.NonInvertibleReason, finalized.UnixNano(), entry.ID,
	)
	if err != nil {
		return fmt.Errorf("could not finalize entry: %w", err)
	}
	if err := expectOne(result); err != nil {
		return err
	}

	entry.FinalizedAt = &finalized
	p.l.WithFields(logrus.Fields{"batch": entry.BatchID, "seq": entry.Seq, "outcome": entry.Outcome}).Debug("Finalized entry")
	return nil
}

func (p *Persistence) CloseBatch(ctx context.Context, batchID string, status domain.BatchStatus) error {
	result, err := p.db.ExecContext(
		ctx,
		"UPDATE batches SET status = ?, closed_at = ? WHERE id = ?",
		string(status), p.now().UnixNano(), batchID,
	)
	if err != nil {
		return fmt.Errorf("could not close batch: %w", err)
	}
	if err := expectOne(result); err != nil {
		return err
	}

	p.l.WithFields(logrus.Fields{"batch": batchID, "status": status}).Debug("Closed batch")
	return nil
}

// Batch returns nil if no batch with the id exists.
func (p *Persistence) Batch(ctx context.Context, id string) (*domain.Batch, error) {
	row := batchRow{}
	err := p.db.GetContext(ctx, &row, "SELECT num, id, kind, corrects, status, created_at, closed_at FROM batches WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	return p.withEntries(ctx, &row)
}

// LatestUndoable returns nil if there is nothing left to undo.
func (p *Persistence) LatestUndoable(ctx context.Context) (*domain.Batch, error) {
	row := batchRow{}
	err := p.db.GetContext(
		ctx,
		&row,
		`SELECT b.num, b.id, b.kind, b.corrects, b.status, b.created_at, b.closed_at FROM batches b
		WHERE b.kind != ? AND b.status != ?
		AND NOT EXISTS (SELECT 1 FROM batches u WHERE u.corrects = b.id)
		ORDER BY b.num DESC LIMIT 1`,
		string(domain.Undo), string(domain.BatchOpen),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	return p.withEntries(ctx, &row)
}

func (p *Persistence) withEntries(ctx context.Context, row *batchRow) (*domain.Batch, error) {
	rows := []entryRow{}
	err := p.db.SelectContext(ctx, &rows, "SELECT * FROM entries WHERE batch_id = ? ORDER BY seq", row.ID)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	batch := row.batch()
	for i := range rows {
		entry, err := rows[i].entry()
		if err != nil {
			return nil, err
		}
		batch.Entries = append(batch.Entries, entry)
	}

	return batch, nil
}

func (p *Persistence) ListBatches(ctx context.Context) ([]*domain.BatchSummary, error) {
	rows := []struct {
		ID        string `db:"id"`
		Kind      string `db:"kind"`
		Corrects  string `db:"corrects"`
		UndoneBy  string `db:"undone_by"`
		Status    string `db:"status"`
		CreatedAt int64  `db:"created_at"`
		Entries   int    `db:"entries"`
		Succeeded int    `db:"succeeded"`
		Unchanged int    `db:"unchanged"`
		Failed    int    `db:"failed"`
		Unknown   int    `db:"unknown"`
	}{}

	err := p.db.SelectContext(
		ctx,
		&rows,
		`SELECT b.id, b.kind, b.corrects, b.status, b.created_at,
			COALESCE((SELECT u.id FROM batches u WHERE u.corrects = b.id ORDER BY u.num DESC LIMIT 1), '') AS undone_by,
			COUNT(e.id) AS entries,
			COALESCE(SUM(e.outcome = 'succeeded'), 0) AS succeeded,
			COALESCE(SUM(e.outcome = 'unchanged'), 0) AS unchanged,
			COALESCE(SUM(e.outcome = 'failed'), 0) AS failed,
			COALESCE(SUM(e.outcome IN ('unknown', 'pending')), 0) AS unknown
		FROM batches b LEFT JOIN entries e ON e.batch_id = b.id
		GROUP BY b.num
		ORDER BY b.num DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	summaries := []*domain.BatchSummary{}
	for _, r := range rows {
		summaries = append(summaries, &domain.BatchSummary{
			ID:        r.ID,
			Kind:      domain.OperationKind(r.Kind),
			Corrects:  r.Corrects,
			UndoneBy:  r.UndoneBy,
			Status:    domain.BatchStatus(r.Status),
			CreatedAt: time.Unix(0, r.CreatedAt),
			Entries:   r.Entries,
			Succeeded: r.Succeeded,
			Unchanged: r.Unchanged,
			Failed:    r.Failed,
			Unknown:   r.Unknown,
		})
	}

	return summaries, nil
}

// Prune drops every batch except the newest keep ones and returns how many
// were dropped.
func (p *Persistence) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("cannot keep %d batches", keep)
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not start transaction: %w", err)
	}

	const stale = "SELECT id FROM batches ORDER BY num DESC LIMIT -1 OFFSET ?"

	_, err = tx.ExecContext(ctx, "DELETE FROM entries WHERE batch_id IN ("+stale+")", keep)
	if err != nil {
		return 0, txEnd(tx, fmt.Errorf("could not prune entries: %w", err))
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM batches WHERE id IN ("+stale+")", keep)
	if err != nil {
		return 0, txEnd(tx, fmt.Errorf("could not prune batches: %w", err))
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, txEnd(tx, fmt.Errorf("could not get num of affected rows: %w", err))
	}

	if err := txEnd(tx, nil); err != nil {
		return 0, err
	}

	if pruned > 0 {
		p.l.WithFields(logrus.Fields{"pruned": pruned, "kept": keep}).Debug("Pruned journal")
	}
	return int(pruned), nil
}

// RecoverInterrupted settles what a previous run left behind: entries still
// pending become unknown and open batches become interrupted. It returns the
// number of interrupted batches.
func (p *Persistence) RecoverInterrupted(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not start transaction: %w", err)
	}

	now := p.now().UnixNano()

	entries, err := tx.ExecContext(
		ctx,
		"UPDATE entries SET outcome = ?, error = ?, finalized_at = ? WHERE outcome = ?",
		string(domain.OutcomeUnknown), interruptedReason, now, string(domain.OutcomePending),
	)
	if err != nil {
		return 0, txEnd(tx, fmt.Errorf("could not recover entries: %w", err))
	}

	batches, err := tx.ExecContext(
		ctx,
		"UPDATE batches SET status = ?, closed_at = ? WHERE status = ?",
		string(domain.BatchInterrupted), now, string(domain.BatchOpen),
	)
	if err != nil {
		return 0, txEnd(tx, fmt.Errorf("could not recover batches: %w", err))
	}

	if err := txEnd(tx, nil); err != nil {
		return 0, err
	}

	recoveredEntries, _ := entries.RowsAffected()
	recoveredBatches, _ := batches.RowsAffected()
	if recoveredBatches > 0 || recoveredEntries > 0 {
		p.l.WithFields(logrus.Fields{"batches": recoveredBatches, "entries": recoveredEntries}).Warn("Recovered interrupted batches, their outcome is unknown")
	}

	return int(recoveredBatches), nil
}

func expectOne(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get num of affected rows: %w", err)
	}

	if affected != 1 {
		return fmt.Errorf("unexpected number of affected rows, expected 1 got %d", affected)
	}

	return nil
}

func txEnd(tx *sqlx.Tx, err error) error {
	if err == nil {
		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("could not commit tx: %w", err)
		}
	} else {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			errStr := err.Error()
			return fmt.Errorf("%s, could not rollback tx: %w", errStr, rollbackErr)
		} else {
			return err
		}
	}

	return nil
}
