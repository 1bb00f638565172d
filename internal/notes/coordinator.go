package notes

import (
	"context"

	"github.com/AdityaUmale/note-taking/internal/favorites"
	"github.com/AdityaUmale/note-taking/internal/obs"
)

// Coordinator orchestrates the operations that touch both the note store
// and the favorite index, keeping the two views of favorite state agreeing
// after every completed operation.
//
// Write order is always relation-before-flag: if the process dies between
// the two writes, the relation set is the source of truth and the stale
// flag is repaired by Reconcile (and never observed, since reads derive
// the flag from the relation set).
type Coordinator struct {
	store *Store
	index *favorites.Index
}

// NewCoordinator creates a coordinator over the store and index.
func NewCoordinator(store *Store, index *favorites.Index) *Coordinator {
	return &Coordinator{store: store, index: index}
}

// ToggleFavorite sets the favorite state of ownerID's note to desired and
// returns the updated note. Toggling to the current state is a no-op that
// still succeeds (both underlying writes are idempotent).
func (c *Coordinator) ToggleFavorite(ctx context.Context, ownerID, noteID string, desired bool) (*Note, error) {
	// Ownership check first: a non-owner's toggle must be a plain miss.
	if _, err := c.store.Get(ctx, ownerID, noteID); err != nil {
		return nil, err
	}

	if desired {
		if err := c.index.Add(ctx, ownerID, noteID); err != nil {
			return nil, err
		}
	} else {
		if err := c.index.Remove(ctx, ownerID, noteID); err != nil {
			return nil, err
		}
	}

	return c.store.SetFavoriteFlag(ctx, ownerID, noteID, desired)
}

// DeleteNote removes ownerID's note and cascades relation cleanup. The
// cascade is best effort: if it fails after the note delete committed, the
// delete still succeeded and the orphaned relation is invisible to reads
// until Reconcile removes it.
func (c *Coordinator) DeleteNote(ctx context.Context, ownerID, noteID string) error {
	if err := c.store.Delete(ctx, ownerID, noteID); err != nil {
		return err
	}

	if err := c.index.RemoveAllForNote(ctx, noteID); err != nil {
		obs.From(ctx).Warn("favorite cascade cleanup failed, relations left for reconcile",
			"note_id", noteID, "error", err)
	}
	return nil
}

// UpdateNote delegates to the store. Title and content edits never imply a
// favorite change.
func (c *Coordinator) UpdateNote(ctx context.Context, ownerID, noteID string, params UpdateNoteParams) (*Note, error) {
	return c.store.Update(ctx, ownerID, noteID, params)
}

// Reconcile repairs the tolerated inconsistency windows: relations whose
// note is gone are deleted, then stored flags that diverge from the
// relation set are rewritten.
func (c *Coordinator) Reconcile(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	pruned, err := c.index.PruneDangling(ctx)
	if err != nil {
		return stats, err
	}
	stats.DanglingRelationsRemoved = pruned

	synced, err := c.store.SyncFavoriteFlags(ctx)
	if err != nil {
		return stats, err
	}
	stats.FlagsRewritten = synced

	if stats.DanglingRelationsRemoved > 0 || stats.FlagsRewritten > 0 {
		obs.Pkg("notes").Info("reconcile pass repaired favorite state",
			"dangling_relations_removed", stats.DanglingRelationsRemoved,
			"flags_rewritten", stats.FlagsRewritten)
	}
	return stats, nil
}
