package sharing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/store/memory"
)

func newFixture(t *testing.T) (*Gate, *memory.MemoryStore, models.Session, models.Session) {
	t.Helper()
	st := memory.NewMemoryStore()
	gate := NewGate(st, zerolog.Nop())

	ctx := context.Background()
	owner := &models.User{Email: "owner@example.com", Name: "Owner"}
	guest := &models.User{Email: "guest@example.com", Name: "Guest"}
	require.NoError(t, st.CreateUser(ctx, owner))
	require.NoError(t, st.CreateUser(ctx, guest))

	return gate, st,
		models.Session{UserID: owner.ID, Email: owner.Email},
		models.Session{UserID: guest.ID, Email: guest.Email}
}

func createPage(t *testing.T, st *memory.MemoryStore, ownerID models.UserID) *models.Page {
	t.Helper()
	page := &models.Page{OwnerID: ownerID, Title: "Untitled"}
	share := &models.Share{OwnerID: ownerID, SharedUserID: ownerID, Permission: models.FullAccess, Active: true}
	require.NoError(t, st.CreatePageWithShare(context.Background(), page, share))
	return page
}

func TestResolveOwnerImplicitFullAccess(t *testing.T) {
	gate, st, owner, _ := newFixture(t)
	page := createPage(t, st, owner.UserID)

	perm, err := gate.Resolve(context.Background(), owner.UserID, page.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FullAccess, perm)
}

func TestResolveDeniesWithoutGrant(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)

	_, err := gate.Resolve(context.Background(), guest.UserID, page.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestResolveMissingPageDenies(t *testing.T) {
	gate, _, owner, _ := newFixture(t)

	// A missing page resolves to a denial, not a not-found, so callers
	// cannot probe for page existence.
	_, err := gate.Resolve(context.Background(), owner.UserID, models.NewPageID())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestInviteGrantsAccess(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)
	ctx := context.Background()

	share, err := gate.Invite(ctx, owner, page.ID, guest.Email, models.ReadAccess)
	require.NoError(t, err)
	assert.Equal(t, guest.UserID, share.SharedUserID)
	assert.True(t, share.Active)

	perm, err := gate.Resolve(ctx, guest.UserID, page.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReadAccess, perm)
	assert.ErrorIs(t, gate.RequireWrite(ctx, guest.UserID, page.ID), ErrPermissionDenied)
}

func TestInviteTwiceUpdatesPermission(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)
	ctx := context.Background()

	first, err := gate.Invite(ctx, owner, page.ID, guest.Email, models.ReadAccess)
	require.NoError(t, err)
	second, err := gate.Invite(ctx, owner, page.ID, guest.Email, models.FullAccess)
	require.NoError(t, err)

	// Same grant row, upgraded in place.
	assert.Equal(t, first.ID, second.ID)
	require.NoError(t, gate.RequireWrite(ctx, guest.UserID, page.ID))
}

func TestInviteRejectsNonOwner(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)

	_, err := gate.Invite(context.Background(), guest, page.ID, owner.Email, models.ReadAccess)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestInviteUnknownEmail(t *testing.T) {
	gate, st, owner, _ := newFixture(t)
	page := createPage(t, st, owner.UserID)

	_, err := gate.Invite(context.Background(), owner, page.ID, "nobody@example.com", models.ReadAccess)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestInviteInvalidPermission(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)

	_, err := gate.Invite(context.Background(), owner, page.ID, guest.Email, models.Permission("ADMIN"))
	assert.Error(t, err)
}

func TestRevokeTakesEffectImmediately(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)
	ctx := context.Background()

	_, err := gate.Invite(ctx, owner, page.ID, guest.Email, models.FullAccess)
	require.NoError(t, err)
	require.NoError(t, gate.RequireWrite(ctx, guest.UserID, page.ID))

	require.NoError(t, gate.Revoke(ctx, owner, page.ID, guest.Email))

	// The next permission resolution already sees the revocation.
	_, err = gate.Resolve(ctx, guest.UserID, page.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRevokeMissingGrantIsNoop(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)

	assert.NoError(t, gate.Revoke(context.Background(), owner, page.ID, guest.Email))
}

func TestListSharedWithMe(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	ctx := context.Background()

	shared := createPage(t, st, owner.UserID)
	createPage(t, st, owner.UserID) // stays private to the owner
	trashed := createPage(t, st, owner.UserID)

	_, err := gate.Invite(ctx, owner, shared.ID, guest.Email, models.ReadAccess)
	require.NoError(t, err)
	_, err = gate.Invite(ctx, owner, trashed.ID, guest.Email, models.ReadAccess)
	require.NoError(t, err)

	// Trash the second page; it must drop out of the shared listing.
	now := time.Now()
	trashed.IsDeleted = true
	trashed.DeletedAt = &now
	require.NoError(t, st.UpdatePage(ctx, trashed))

	pages, err := gate.ListSharedWithMe(ctx, guest)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, shared.ID, pages[0].ID)

	// The owner's own self-grants never show up as shared-with-me.
	pages, err = gate.ListSharedWithMe(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestListSharesOwnerOnly(t *testing.T) {
	gate, st, owner, guest := newFixture(t)
	page := createPage(t, st, owner.UserID)
	ctx := context.Background()

	_, err := gate.Invite(ctx, owner, page.ID, guest.Email, models.ReadAccess)
	require.NoError(t, err)

	shares, err := gate.ListShares(ctx, owner, page.ID)
	require.NoError(t, err)
	assert.Len(t, shares, 2) // owner self-grant plus the invite

	_, err = gate.ListShares(ctx, guest, page.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
