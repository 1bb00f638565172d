// Package favorites owns the set of (owner, note) favorite relations.
// The relation set is the source of truth for favorite state; the
// denormalized flag on the note record is a cache derived from it.
package favorites

import (
	"context"
	"database/sql"
	"time"

	"github.com/AdityaUmale/note-taking/internal/db"
	"github.com/AdityaUmale/note-taking/internal/errs"
)

// Index enforces at most one relation per (owner, note) pair via the
// table's primary key. Relations are created and destroyed only by the
// coordinator, never directly from the boundary.
type Index struct {
	db *db.DB
}

// NewIndex creates a favorite index over the shared database.
func NewIndex(d *db.DB) *Index {
	return &Index{db: d}
}

// Add records that ownerID favorited noteID. Idempotent: a duplicate-key
// condition means another writer (or an earlier call) already created the
// relation, which is success, not an error.
func (i *Index) Add(ctx context.Context, ownerID, noteID string) error {
	_, err := i.db.SQL().ExecContext(ctx,
		`INSERT INTO favorites (owner_id, note_id, created_at) VALUES (?, ?, ?)`,
		ownerID, noteID, time.Now().UTC().Unix())
	if err != nil {
		if db.IsUniqueConstraint(err) {
			return nil
		}
		return indexErr("add favorite", err)
	}
	return nil
}

// Remove deletes the relation for (ownerID, noteID). Idempotent: removing
// a relation that does not exist succeeds silently.
func (i *Index) Remove(ctx context.Context, ownerID, noteID string) error {
	_, err := i.db.SQL().ExecContext(ctx,
		`DELETE FROM favorites WHERE owner_id = ? AND note_id = ?`, ownerID, noteID)
	if err != nil {
		return indexErr("remove favorite", err)
	}
	return nil
}

// RemoveAllForNote deletes every relation referencing noteID regardless of
// owner. Only the cascade path calls this; the deletion that triggers it
// already authorized the note's owner.
func (i *Index) RemoveAllForNote(ctx context.Context, noteID string) error {
	_, err := i.db.SQL().ExecContext(ctx,
		`DELETE FROM favorites WHERE note_id = ?`, noteID)
	if err != nil {
		return indexErr("remove favorites for note", err)
	}
	return nil
}

// Exists reports whether a relation is recorded for (ownerID, noteID).
func (i *Index) Exists(ctx context.Context, ownerID, noteID string) (bool, error) {
	var one int
	err := i.db.SQL().QueryRowContext(ctx,
		`SELECT 1 FROM favorites WHERE owner_id = ? AND note_id = ?`, ownerID, noteID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, indexErr("check favorite", err)
	}
	return true, nil
}

// CountForNote returns the number of relations referencing noteID.
func (i *Index) CountForNote(ctx context.Context, noteID string) (int, error) {
	var count int
	err := i.db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE note_id = ?`, noteID).Scan(&count)
	if err != nil {
		return 0, indexErr("count favorites", err)
	}
	return count, nil
}

// PruneDangling removes relations whose note no longer exists. Dangling
// relations appear when a cascade cleanup fails after a note delete; reads
// already treat them as absent, this makes the state physical again.
func (i *Index) PruneDangling(ctx context.Context) (int64, error) {
	res, err := i.db.SQL().ExecContext(ctx,
		`DELETE FROM favorites WHERE note_id NOT IN (SELECT id FROM notes)`)
	if err != nil {
		return 0, indexErr("prune dangling favorites", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, indexErr("prune dangling favorites", err)
	}
	return affected, nil
}

func indexErr(op string, err error) error {
	if db.IsBusy(err) {
		return errs.Wrap(errs.Unavailable, "store temporarily unavailable", err)
	}
	return errs.Wrap(errs.Internal, "failed to "+op, err)
}
