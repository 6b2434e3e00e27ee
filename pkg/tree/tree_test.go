package tree

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/sharing"
	"github.com/imkrishn/notex/pkg/store"
	"github.com/imkrishn/notex/pkg/store/memory"
)

func newFixture(t *testing.T) (*Manager, *memory.MemoryStore, models.Session) {
	t.Helper()
	st := memory.NewMemoryStore()
	gate := sharing.NewGate(st, zerolog.Nop())
	m := NewManager(st, gate, NewBus(), zerolog.Nop())
	t.Cleanup(m.Close)

	user := &models.User{Email: "owner@example.com", Name: "Owner"}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return m, st, models.Session{UserID: user.ID, Email: user.Email}
}

func addUser(t *testing.T, st *memory.MemoryStore, email string) models.Session {
	t.Helper()
	user := &models.User{Email: email, Name: email}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return models.Session{UserID: user.ID, Email: email}
}

func TestCreateRootGetsOwnerGrant(t *testing.T) {
	m, st, sess := newFixture(t)
	ctx := context.Background()

	page, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, page.Title)
	assert.True(t, page.IsRoot())

	// The owner grant is created atomically with the page.
	share, err := st.FindShare(ctx, page.ID, sess.UserID, sess.UserID)
	require.NoError(t, err)
	require.NotNil(t, share)
	assert.Equal(t, models.FullAccess, share.Permission)

	roots, err := m.ListRoots(ctx, sess)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, page.ID, roots[0].ID)
}

func TestCreateChildRequiresWriteAccess(t *testing.T) {
	m, st, owner := newFixture(t)
	other := addUser(t, st, "other@example.com")
	ctx := context.Background()

	parent, err := m.CreateRoot(ctx, owner)
	require.NoError(t, err)

	_, err = m.CreateChild(ctx, other, parent.ID)
	assert.ErrorIs(t, err, sharing.ErrPermissionDenied)

	child, err := m.CreateChild(ctx, owner, parent.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestCreateChildUnderMissingParent(t *testing.T) {
	m, _, sess := newFixture(t)

	_, err := m.CreateChild(context.Background(), sess, models.NewPageID())
	assert.ErrorIs(t, err, sharing.ErrPermissionDenied)
}

func TestExpandCachesAndInvalidates(t *testing.T) {
	m, _, sess := newFixture(t)
	ctx := context.Background()

	parent, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	first, err := m.CreateChild(ctx, sess, parent.ID)
	require.NoError(t, err)

	children, err := m.Expand(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, first.ID, children[0].ID)

	// Creating another child publishes an invalidation; the next Expand
	// refetches instead of serving the stale cache.
	second, err := m.CreateChild(ctx, sess, parent.ID)
	require.NoError(t, err)

	children, err = m.Expand(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	ids := []models.PageID{children[0].ID, children[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

// countingStore counts child fetches and parks the first one until released.
type countingStore struct {
	store.Store
	mu      sync.Mutex
	fetches int
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *countingStore) ListChildPages(ctx context.Context, parentID models.PageID) ([]*models.Page, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Store.ListChildPages(ctx, parentID)
}

func TestExpandCoalescesConcurrentFetches(t *testing.T) {
	mem := memory.NewMemoryStore()
	st := &countingStore{
		Store:   mem,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManager(st, sharing.NewGate(st, zerolog.Nop()), NewBus(), zerolog.Nop())
	t.Cleanup(m.Close)
	ctx := context.Background()

	owner := models.NewUserID()
	parent := &models.Page{OwnerID: owner, Title: DefaultTitle}
	require.NoError(t, mem.CreatePage(ctx, parent))
	child := &models.Page{OwnerID: owner, ParentID: &parent.ID, Title: DefaultTitle}
	require.NoError(t, mem.CreatePage(ctx, child))

	const expanders = 8
	results := make([][]*models.Page, expanders)
	errs := make([]error, expanders)

	var wg sync.WaitGroup
	for i := 0; i < expanders; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = m.Expand(ctx, parent.ID)
		}(i)
	}

	// Hold the first fetch open until the rest have joined it, then let the
	// shared fetch complete.
	<-st.entered
	time.Sleep(20 * time.Millisecond)
	close(st.release)
	wg.Wait()

	for i := 0; i < expanders; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, child.ID, results[i][0].ID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, 1, st.fetches)
}

// parkingStore reads the child list, then parks the first fetch until
// released, so the caller ends up holding a snapshot from before whatever
// happened while it was parked.
type parkingStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *parkingStore) ListChildPages(ctx context.Context, parentID models.PageID) ([]*models.Page, error) {
	pages, err := s.Store.ListChildPages(ctx, parentID)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return pages, err
}

func TestExpandDropsStaleFetchAfterInvalidation(t *testing.T) {
	mem := memory.NewMemoryStore()
	st := &parkingStore{
		Store:   mem,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManager(st, sharing.NewGate(st, zerolog.Nop()), NewBus(), zerolog.Nop())
	t.Cleanup(m.Close)
	ctx := context.Background()

	owner := models.NewUserID()
	parent := &models.Page{OwnerID: owner, Title: DefaultTitle}
	require.NoError(t, mem.CreatePage(ctx, parent))
	first := &models.Page{OwnerID: owner, ParentID: &parent.ID, Title: "first"}
	require.NoError(t, mem.CreatePage(ctx, first))

	done := make(chan struct{})
	go func() {
		defer close(done)
		children, err := m.Expand(ctx, parent.ID)
		// The parked fetch returns the pre-mutation snapshot; that is fine
		// for this caller, it just must not be cached.
		assert.NoError(t, err)
		assert.Len(t, children, 1)
	}()
	<-st.entered

	// A second child lands while the fetch is parked and the bus announces
	// it before the fetch returns.
	second := &models.Page{OwnerID: owner, ParentID: &parent.ID, Title: "second"}
	require.NoError(t, mem.CreatePage(ctx, second))
	m.Bus().Invalidate(Event{ParentID: parent.ID, OwnerID: owner})

	close(st.release)
	<-done

	children, err := m.Expand(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
}

func TestSoftDeleteHidesPageAndSubtree(t *testing.T) {
	m, st, sess := newFixture(t)
	ctx := context.Background()

	parent, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	child, err := m.CreateChild(ctx, sess, parent.ID)
	require.NoError(t, err)

	require.NoError(t, m.SoftDelete(ctx, sess, parent.ID))

	roots, err := m.ListRoots(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, roots)

	// Only the trashed node carries the deletion mark; descendants keep
	// their rows and vanish because no walk descends through it.
	stored, err := st.GetPage(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsDeleted)
}

func TestSoftDeleteOwnerOnly(t *testing.T) {
	m, st, owner := newFixture(t)
	other := addUser(t, st, "other@example.com")
	ctx := context.Background()

	page, err := m.CreateRoot(ctx, owner)
	require.NoError(t, err)

	err = m.SoftDelete(ctx, other, page.ID)
	assert.ErrorIs(t, err, sharing.ErrPermissionDenied)
}

func TestSoftDeleteTwiceIsIdempotent(t *testing.T) {
	m, _, sess := newFixture(t)
	ctx := context.Background()

	page, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	require.NoError(t, m.SoftDelete(ctx, sess, page.ID))
	assert.NoError(t, m.SoftDelete(ctx, sess, page.ID))
}

func TestRestoreBringsSubtreeBack(t *testing.T) {
	m, _, sess := newFixture(t)
	ctx := context.Background()

	parent, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	child, err := m.CreateChild(ctx, sess, parent.ID)
	require.NoError(t, err)

	require.NoError(t, m.SoftDelete(ctx, sess, parent.ID))
	require.NoError(t, m.Restore(ctx, sess, parent.ID))

	roots, err := m.ListRoots(ctx, sess)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	children, err := m.Expand(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
}

func TestRenameAndUpdateOnDeletedPage(t *testing.T) {
	m, _, sess := newFixture(t)
	ctx := context.Background()

	page, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	require.NoError(t, m.Rename(ctx, sess, page.ID, "Plans"))

	renamed, err := m.ListRoots(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "Plans", renamed[0].Title)

	require.NoError(t, m.SoftDelete(ctx, sess, page.ID))
	err = m.Rename(ctx, sess, page.ID, "Too late")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestUpdateRequiresWriteAccess(t *testing.T) {
	m, st, owner := newFixture(t)
	guest := addUser(t, st, "guest@example.com")
	gate := sharing.NewGate(st, zerolog.Nop())
	ctx := context.Background()

	page, err := m.CreateRoot(ctx, owner)
	require.NoError(t, err)

	err = m.Rename(ctx, guest, page.ID, "Hijacked")
	assert.ErrorIs(t, err, sharing.ErrPermissionDenied)

	// A FullAccess grant lets a non-owner rename.
	_, err = gate.Invite(ctx, owner, page.ID, guest.Email, models.FullAccess)
	require.NoError(t, err)
	assert.NoError(t, m.Rename(ctx, guest, page.ID, "Shared title"))
}

func TestSetPublishedAndCover(t *testing.T) {
	m, st, sess := newFixture(t)
	ctx := context.Background()

	page, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	require.NoError(t, m.SetPublished(ctx, sess, page.ID, true))
	require.NoError(t, m.SetCover(ctx, sess, page.ID, "https://example.com/cover.png"))
	require.NoError(t, m.SetIcon(ctx, sess, page.ID, "https://example.com/icon.png"))

	stored, err := st.GetPage(ctx, page.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPublished)
	assert.Equal(t, "https://example.com/cover.png", stored.CoverURL)
	assert.Equal(t, "https://example.com/icon.png", stored.LogoURL)
}

func TestCollapseEvictsCache(t *testing.T) {
	m, st, sess := newFixture(t)
	ctx := context.Background()

	parent, err := m.CreateRoot(ctx, sess)
	require.NoError(t, err)
	_, err = m.Expand(ctx, parent.ID)
	require.NoError(t, err)

	// Write a child behind the manager's back, then collapse: the next
	// Expand must see it.
	sneaky := &models.Page{OwnerID: sess.UserID, ParentID: &parent.ID, Title: "Sneaky"}
	require.NoError(t, st.CreatePage(ctx, sneaky))

	m.Collapse(parent.ID)
	children, err := m.Expand(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, sneaky.ID, children[0].ID)
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus()

	var got []Event
	cancel := bus.Subscribe(func(ev Event) { got = append(got, ev) })

	parent := models.NewPageID()
	bus.Invalidate(Event{ParentID: parent})
	require.Len(t, got, 1)
	assert.Equal(t, parent, got[0].ParentID)

	cancel()
	bus.Invalidate(Event{ParentID: parent})
	assert.Len(t, got, 1)
}
