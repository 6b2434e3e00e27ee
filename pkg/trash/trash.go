// Package trash implements the trash lifecycle over the page tree: a
// paginated listing of soft-deleted pages, restore, and the irreversible
// purge that also removes the page's blocks and share grants.
package trash

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/sharing"
	"github.com/imkrishn/notex/pkg/store"
	"github.com/imkrishn/notex/pkg/tree"
)

// DefaultPageSize bounds trash listings when the caller passes no limit.
const DefaultPageSize = 20

// ErrNotTrashed is returned by Purge when the target page is not in the
// trash; live pages must be soft-deleted first.
var ErrNotTrashed = errors.New("page is not in the trash")

// Trash exposes the trash listing and its terminal transitions.
type Trash struct {
	store store.Store
	tree  *tree.Manager
	log   zerolog.Logger
}

// New creates a Trash over st, delegating restore to the tree manager.
func New(st store.Store, tm *tree.Manager, logger zerolog.Logger) *Trash {
	return &Trash{
		store: st,
		tree:  tm,
		log:   logger.With().Str("component", "trash").Logger(),
	}
}

// List returns one page of the session user's trashed pages, most recently
// deleted first. The cursor is the ID of the last page of the previous
// batch; pass a zero ID for the first batch. hasMore is a heuristic: a full
// batch implies more may exist, which can over-report by one page at the
// boundary. Good enough for a listing, not for accounting.
func (t *Trash) List(ctx context.Context, sess models.Session, limit int, cursor models.PageID) (pages []*models.Page, nextCursor models.PageID, hasMore bool, err error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	pages, err = t.store.ListTrashedPages(ctx, sess.UserID, limit, cursor)
	if err != nil {
		return nil, models.PageID{}, false, fmt.Errorf("failed to list trash: %w", err)
	}
	if len(pages) > 0 {
		nextCursor = pages[len(pages)-1].ID
	}
	hasMore = len(pages) == limit
	return pages, nextCursor, hasMore, nil
}

// Restore moves a trashed page back into the tree.
func (t *Trash) Restore(ctx context.Context, sess models.Session, pageID models.PageID) error {
	return t.tree.Restore(ctx, sess, pageID)
}

// Purge permanently destroys a trashed page together with its blocks and
// share grants. Only the owner may purge, and only pages already in the
// trash. There is no undo; callers must confirm with the user first.
func (t *Trash) Purge(ctx context.Context, sess models.Session, pageID models.PageID) error {
	page, err := t.store.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return tree.ErrPageNotFound
	}
	if page.OwnerID != sess.UserID {
		return sharing.ErrPermissionDenied
	}
	if !page.IsDeleted {
		return ErrNotTrashed
	}

	// Dependent rows first so a failure midway never leaves blocks or grants
	// pointing at a vanished page.
	if err := t.store.DeleteBlocksByPage(ctx, pageID); err != nil {
		return fmt.Errorf("failed to purge blocks: %w", err)
	}
	if err := t.store.DeleteSharesByPage(ctx, pageID); err != nil {
		return fmt.Errorf("failed to purge shares: %w", err)
	}
	if err := t.store.DeletePage(ctx, pageID); err != nil {
		return fmt.Errorf("failed to purge page: %w", err)
	}

	t.log.Info().Str("page_id", pageID.String()).Msg("page purged")
	return nil
}
