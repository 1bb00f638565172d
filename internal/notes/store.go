package notes

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/AdityaUmale/note-taking/internal/db"
	"github.com/AdityaUmale/note-taking/internal/errs"
)

// Store handles owner-scoped note persistence. Every operation takes the
// caller's owner id explicitly; there is no ambient identity, so a wrong
// (or missing) owner can only ever produce a miss, never a leak.
type Store struct {
	db *db.DB
}

// NewStore creates a note store over the shared database.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// selectNote is the shared projection for note reads. The favorite flag is
// computed live from the relation table, which both keeps reads fresh and
// makes a dangling relation (note already deleted) unobservable.
const selectNote = `
SELECT n.id, n.owner_id, n.title, n.content,
       EXISTS(SELECT 1 FROM favorites f WHERE f.owner_id = n.owner_id AND f.note_id = n.id),
       n.created_at, n.updated_at
FROM notes n`

// Create persists a new note for ownerID with a generated id and timestamp.
func (s *Store) Create(ctx context.Context, ownerID string, params CreateNoteParams) (*Note, error) {
	if ownerID == "" {
		return nil, errs.New(errs.InvalidArgument, "owner id is required")
	}
	if params.Title == "" {
		return nil, errs.New(errs.InvalidArgument, "title is required")
	}

	noteID := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.SQL().ExecContext(ctx,
		`INSERT INTO notes (id, owner_id, title, content, is_favorite, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		noteID, ownerID, params.Title, params.Content, now.Unix(), now.Unix())
	if err != nil {
		return nil, storeErr("create note", err)
	}

	return &Note{
		ID:        noteID,
		OwnerID:   ownerID,
		Title:     params.Title,
		Content:   params.Content,
		CreatedAt: now.Truncate(time.Second),
		UpdatedAt: now.Truncate(time.Second),
	}, nil
}

// Get returns the note iff it exists and is owned by ownerID. A note owned
// by someone else is indistinguishable from an absent one.
func (s *Store) Get(ctx context.Context, ownerID, noteID string) (*Note, error) {
	if err := validateNoteID(noteID); err != nil {
		return nil, err
	}

	row := s.db.SQL().QueryRowContext(ctx, selectNote+` WHERE n.id = ? AND n.owner_id = ?`, noteID, ownerID)
	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "note not found")
	}
	if err != nil {
		return nil, storeErr("read note", err)
	}
	return note, nil
}

// ListByOwner returns ownerID's notes, most recently created first.
// Equal creation timestamps break by insertion order, newest insertion
// first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]Note, error) {
	rows, err := s.db.SQL().QueryContext(ctx,
		selectNote+` WHERE n.owner_id = ? ORDER BY n.created_at DESC, n.rowid DESC`, ownerID)
	if err != nil {
		return nil, storeErr("list notes", err)
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, storeErr("scan note", err)
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list notes", err)
	}
	return notes, nil
}

// Update applies the provided fields to ownerID's note. A provided-but-empty
// title is rejected the same way an empty title on create is.
func (s *Store) Update(ctx context.Context, ownerID, noteID string, params UpdateNoteParams) (*Note, error) {
	if err := validateNoteID(noteID); err != nil {
		return nil, err
	}
	if params.Title != nil && *params.Title == "" {
		return nil, errs.New(errs.InvalidArgument, "title is required")
	}

	existing, err := s.Get(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}

	newTitle := existing.Title
	newContent := existing.Content
	if params.Title != nil {
		newTitle = *params.Title
	}
	if params.Content != nil {
		newContent = *params.Content
	}

	now := time.Now().UTC()
	_, err = s.db.SQL().ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		newTitle, newContent, now.Unix(), noteID, ownerID)
	if err != nil {
		return nil, storeErr("update note", err)
	}

	updated := *existing
	updated.Title = newTitle
	updated.Content = newContent
	updated.UpdatedAt = now.Truncate(time.Second)
	return &updated, nil
}

// Delete removes ownerID's note. The caller is responsible for cascading
// relation cleanup; the note store does not know about the favorite index.
func (s *Store) Delete(ctx context.Context, ownerID, noteID string) error {
	if err := validateNoteID(noteID); err != nil {
		return err
	}

	res, err := s.db.SQL().ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND owner_id = ?`, noteID, ownerID)
	if err != nil {
		return storeErr("delete note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete note", err)
	}
	if affected == 0 {
		return errs.New(errs.NotFound, "note not found")
	}
	return nil
}

// SetFavoriteFlag writes the denormalized favorite flag. Used only by the
// coordinator, after the relation write; never exposed at the boundary.
func (s *Store) SetFavoriteFlag(ctx context.Context, ownerID, noteID string, value bool) (*Note, error) {
	if err := validateNoteID(noteID); err != nil {
		return nil, err
	}

	flag := 0
	if value {
		flag = 1
	}
	res, err := s.db.SQL().ExecContext(ctx,
		`UPDATE notes SET is_favorite = ? WHERE id = ? AND owner_id = ?`,
		flag, noteID, ownerID)
	if err != nil {
		return nil, storeErr("set favorite flag", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("set favorite flag", err)
	}
	if affected == 0 {
		return nil, errs.New(errs.NotFound, "note not found")
	}

	return s.Get(ctx, ownerID, noteID)
}

// StoredFavoriteFlag reads the raw denormalized column, bypassing the live
// relation-derived value. Used by the reconciler and by tests asserting the
// cache agrees with the relation set.
func (s *Store) StoredFavoriteFlag(ctx context.Context, ownerID, noteID string) (bool, error) {
	if err := validateNoteID(noteID); err != nil {
		return false, err
	}

	var flag int
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT is_favorite FROM notes WHERE id = ? AND owner_id = ?`, noteID, ownerID).Scan(&flag)
	if err == sql.ErrNoRows {
		return false, errs.New(errs.NotFound, "note not found")
	}
	if err != nil {
		return false, storeErr("read favorite flag", err)
	}
	return flag != 0, nil
}

// SyncFavoriteFlags rewrites every stored flag that disagrees with the
// relation set. Returns the number of notes corrected.
func (s *Store) SyncFavoriteFlags(ctx context.Context) (int64, error) {
	res, err := s.db.SQL().ExecContext(ctx, `
		UPDATE notes SET is_favorite = (
		    CASE WHEN EXISTS(SELECT 1 FROM favorites f WHERE f.owner_id = notes.owner_id AND f.note_id = notes.id)
		         THEN 1 ELSE 0 END
		)
		WHERE is_favorite != (
		    CASE WHEN EXISTS(SELECT 1 FROM favorites f WHERE f.owner_id = notes.owner_id AND f.note_id = notes.id)
		         THEN 1 ELSE 0 END
		)`)
	if err != nil {
		return 0, storeErr("sync favorite flags", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("sync favorite flags", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	var (
		note      Note
		favorite  int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&note.ID, &note.OwnerID, &note.Title, &note.Content, &favorite, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	note.IsFavorite = favorite != 0
	note.CreatedAt = time.Unix(createdAt, 0).UTC()
	note.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &note, nil
}

// validateNoteID rejects syntactically malformed note identifiers before
// any store access, so callers can tell bad input from a legitimate miss.
func validateNoteID(noteID string) error {
	if noteID == "" {
		return errs.New(errs.InvalidID, "note id is required")
	}
	if _, err := uuid.Parse(noteID); err != nil {
		return errs.New(errs.InvalidID, "malformed note id")
	}
	return nil
}

// storeErr classifies a driver error: locked/busy conditions surface as
// unavailable so the boundary can retry, everything else is internal.
func storeErr(op string, err error) error {
	if db.IsBusy(err) {
		return errs.Wrap(errs.Unavailable, "store temporarily unavailable", err)
	}
	return errs.Wrap(errs.Internal, "failed to "+op, err)
}
