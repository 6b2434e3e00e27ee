// Package sharing implements the permission gate for pages.
//
// A share grant gives one user access to one page at either ReadAccess or
// FullAccess; the page owner always implicitly holds FullAccess. Resolve is
// the single authorization decision point: every mutating operation in the
// HTTP layer and the tree manager calls it before touching the store, so
// permission enforcement happens server-side rather than as a UI affordance.
package sharing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/store"
)

// ErrPermissionDenied is returned when the caller holds no sufficient grant
// for the page, or the page does not exist. Missing pages resolve to a denial
// rather than a distinct error so callers cannot probe for page existence.
var ErrPermissionDenied = errors.New("permission denied")

// ErrUnknownUser is returned by Invite and Revoke when the target email does
// not resolve to a registered user.
var ErrUnknownUser = errors.New("unknown user")

// Gate performs share-grant management and permission resolution over a Store.
type Gate struct {
	store store.Store
	log   zerolog.Logger
}

// NewGate creates a sharing gate backed by st.
func NewGate(st store.Store, logger zerolog.Logger) *Gate {
	return &Gate{
		store: st,
		log:   logger.With().Str("component", "sharing").Logger(),
	}
}

// Invite grants the user behind targetEmail access to the page. Only the page
// owner may invite. An existing grant for the same (page, owner, user) key is
// updated in place rather than duplicated, so repeated invites act as
// permission changes.
func (g *Gate) Invite(ctx context.Context, sess models.Session, pageID models.PageID, targetEmail string, permission models.Permission) (*models.Share, error) {
	if !permission.Valid() {
		return nil, fmt.Errorf("invalid permission %q", permission)
	}

	page, err := g.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil || page.OwnerID != sess.UserID {
		return nil, ErrPermissionDenied
	}

	target, err := g.store.GetUserByEmail(ctx, targetEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invitee: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, targetEmail)
	}

	existing, err := g.store.FindShare(ctx, pageID, sess.UserID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up share: %w", err)
	}
	if existing != nil {
		existing.Permission = permission
		existing.Active = true
		if err := g.store.UpdateShare(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update share: %w", err)
		}
		g.log.Info().
			Str("page_id", pageID.String()).
			Str("shared_user_id", target.ID.String()).
			Str("permission", string(permission)).
			Msg("share updated")
		return existing, nil
	}

	share := &models.Share{
		PageID:       pageID,
		OwnerID:      sess.UserID,
		SharedUserID: target.ID,
		Permission:   permission,
		Active:       true,
	}
	if err := g.store.CreateShare(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}
	g.log.Info().
		Str("page_id", pageID.String()).
		Str("shared_user_id", target.ID.String()).
		Str("permission", string(permission)).
		Msg("share created")
	return share, nil
}

// Revoke deletes the grant for targetEmail on the page. Only the page owner
// may revoke. Revoking a grant that does not exist is a no-op.
func (g *Gate) Revoke(ctx context.Context, sess models.Session, pageID models.PageID, targetEmail string) error {
	page, err := g.store.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil || page.OwnerID != sess.UserID {
		return ErrPermissionDenied
	}

	target, err := g.store.GetUserByEmail(ctx, targetEmail)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownUser, targetEmail)
	}

	share, err := g.store.FindShare(ctx, pageID, sess.UserID, target.ID)
	if err != nil {
		return fmt.Errorf("failed to look up share: %w", err)
	}
	if share == nil {
		return nil
	}
	if err := g.store.DeleteShare(ctx, share.ID); err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}
	g.log.Info().
		Str("page_id", pageID.String()).
		Str("shared_user_id", target.ID.String()).
		Msg("share revoked")
	return nil
}

// ListSharedWithMe returns the visible pages other users have shared with the
// session's user. Self-grants created at page creation are excluded by the
// owner comparison, and trashed pages are filtered out.
func (g *Gate) ListSharedWithMe(ctx context.Context, sess models.Session) ([]*models.Page, error) {
	shares, err := g.store.ListSharesForUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}

	pages := []*models.Page{}
	for _, share := range shares {
		if share.OwnerID == sess.UserID {
			continue
		}
		page, err := g.store.GetPage(ctx, share.PageID)
		if err != nil {
			// Keep listing the rest; a single bad row should not hide the
			// whole shared section.
			g.log.Warn().Err(err).Str("page_id", share.PageID.String()).Msg("failed to load shared page")
			continue
		}
		if page == nil || page.IsDeleted {
			continue
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// ListShares returns all grants on a page. Only the owner may inspect them.
func (g *Gate) ListShares(ctx context.Context, sess models.Session, pageID models.PageID) ([]*models.Share, error) {
	page, err := g.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil || page.OwnerID != sess.UserID {
		return nil, ErrPermissionDenied
	}
	return g.store.ListSharesByPage(ctx, pageID)
}

// Resolve returns the effective permission userID holds on pageID. The owner
// implicitly holds FullAccess; otherwise the active grant's permission
// applies. A missing page, missing grant, or inactive grant all resolve to
// ErrPermissionDenied.
func (g *Gate) Resolve(ctx context.Context, userID models.UserID, pageID models.PageID) (models.Permission, error) {
	page, err := g.store.GetPage(ctx, pageID)
	if err != nil {
		return "", fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return "", ErrPermissionDenied
	}
	if page.OwnerID == userID {
		return models.FullAccess, nil
	}

	share, err := g.store.FindShare(ctx, pageID, page.OwnerID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up share: %w", err)
	}
	if share == nil || !share.Active {
		return "", ErrPermissionDenied
	}
	return share.Permission, nil
}

// RequireWrite resolves the caller's permission and fails with
// ErrPermissionDenied unless it allows mutation.
func (g *Gate) RequireWrite(ctx context.Context, userID models.UserID, pageID models.PageID) error {
	perm, err := g.Resolve(ctx, userID, pageID)
	if err != nil {
		return err
	}
	if !perm.AllowsWrite() {
		return ErrPermissionDenied
	}
	return nil
}
