package notes

import "time"

// Note represents an owner's note with metadata.
//
// IsFavorite is computed from the favorites relation on every read; the
// denormalized column in the notes table is a write-through cache and is
// never trusted over the relation.
type Note struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateNoteParams contains parameters for creating a note.
type CreateNoteParams struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateNoteParams contains parameters for updating a note.
// Fields are pointers to distinguish empty string from omitted.
type UpdateNoteParams struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ReconcileStats reports what a reconciliation pass changed.
type ReconcileStats struct {
	DanglingRelationsRemoved int64 `json:"dangling_relations_removed"`
	FlagsRewritten           int64 `json:"flags_rewritten"`
}
