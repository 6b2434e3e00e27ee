// Package tree implements the page tree manager: the navigable forest of
// pages owned by or shared with a user, with lazy child loading, a per-node
// children cache, and the soft-delete/restore lifecycle.
//
// # Caching and invalidation
//
// Children are fetched on first expansion and cached per node with no TTL.
// Concurrent expansions of the same node are coalesced through singleflight
// so a slow fetch never runs twice. Mutations publish invalidation events on
// a [Bus]; the manager subscribes its own evictor, and external listeners
// (for example a connected client's push channel) can subscribe too.
//
// # Deletion policy
//
// Soft deletion marks only the page itself. Descendants keep their rows
// untouched and disappear from every tree walk because walks never descend
// through a trashed node; restoring the ancestor brings the whole subtree
// back at once. The alternative, stamping every descendant, would make
// restore lossy for subtrees trashed separately beforehand.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/sharing"
	"github.com/imkrishn/notex/pkg/store"
)

// ErrPageNotFound is returned when an operation targets a page that does not
// exist.
var ErrPageNotFound = errors.New("page not found")

// DefaultTitle is the title given to newly created pages.
const DefaultTitle = "Untitled"

// Manager owns the page hierarchy for the application.
type Manager struct {
	store store.Store
	gate  *sharing.Gate
	bus   *Bus
	log   zerolog.Logger

	mu       sync.Mutex
	children map[models.PageID][]*models.Page
	gen      map[models.PageID]uint64
	sf       singleflight.Group

	unsubscribe func()
}

// NewManager creates a tree manager. The manager subscribes its own cache
// evictor on bus; call Close to detach it.
func NewManager(st store.Store, gate *sharing.Gate, bus *Bus, logger zerolog.Logger) *Manager {
	m := &Manager{
		store:    st,
		gate:     gate,
		bus:      bus,
		log:      logger.With().Str("component", "tree").Logger(),
		children: make(map[models.PageID][]*models.Page),
		gen:      make(map[models.PageID]uint64),
	}
	m.unsubscribe = bus.Subscribe(m.onInvalidate)
	return m
}

// Close detaches the manager from the event bus.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Bus returns the invalidation bus mutations publish on.
func (m *Manager) Bus() *Bus { return m.bus }

func (m *Manager) onInvalidate(ev Event) {
	if ev.ParentID.IsZero() {
		return
	}
	m.mu.Lock()
	delete(m.children, ev.ParentID)
	m.gen[ev.ParentID]++
	m.mu.Unlock()
}

// ListRoots returns the visible root pages owned by the session's user,
// most recently updated first. Errors are reported to the caller, which
// renders an empty state with a retry affordance; nothing is cached.
func (m *Manager) ListRoots(ctx context.Context, sess models.Session) ([]*models.Page, error) {
	pages, err := m.store.ListRootPages(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list root pages: %w", err)
	}
	return pages, nil
}

// Expand returns the visible children of pageID, fetching on first call and
// serving from cache afterwards. Concurrent calls for the same node while a
// fetch is in flight share the one fetch instead of issuing duplicates.
func (m *Manager) Expand(ctx context.Context, pageID models.PageID) ([]*models.Page, error) {
	m.mu.Lock()
	if cached, ok := m.children[pageID]; ok {
		out := make([]*models.Page, len(cached))
		copy(out, cached)
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	v, err, _ := m.sf.Do(pageID.String(), func() (any, error) {
		m.mu.Lock()
		start := m.gen[pageID]
		m.mu.Unlock()

		pages, err := m.store.ListChildPages(ctx, pageID)
		if err != nil {
			return nil, err
		}

		// An invalidation published while the fetch was in flight bumps the
		// generation; caching the result then would resurrect a child list
		// from before the mutation.
		m.mu.Lock()
		if m.gen[pageID] == start {
			m.children[pageID] = pages
		}
		m.mu.Unlock()
		return pages, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand page %s: %w", pageID, err)
	}

	cached := v.([]*models.Page)
	out := make([]*models.Page, len(cached))
	copy(out, cached)
	return out, nil
}

// Collapse drops the cached children of pageID. The next Expand refetches,
// and a fetch already in flight will not repopulate the evicted entry.
func (m *Manager) Collapse(pageID models.PageID) {
	m.mu.Lock()
	delete(m.children, pageID)
	m.gen[pageID]++
	m.mu.Unlock()
}

// CreateRoot creates a new top-level page for the session's user together
// with the owner's FullAccess grant.
func (m *Manager) CreateRoot(ctx context.Context, sess models.Session) (*models.Page, error) {
	return m.create(ctx, sess, nil)
}

// CreateChild creates a new page under parentID. The caller needs write
// access to the parent. On success an invalidation is published for the
// parent so its cached children are refetched.
func (m *Manager) CreateChild(ctx context.Context, sess models.Session, parentID models.PageID) (*models.Page, error) {
	if err := m.gate.RequireWrite(ctx, sess.UserID, parentID); err != nil {
		return nil, err
	}
	parent, err := m.store.GetPage(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent: %w", err)
	}
	if parent == nil || parent.IsDeleted {
		return nil, ErrPageNotFound
	}
	return m.create(ctx, sess, &parentID)
}

func (m *Manager) create(ctx context.Context, sess models.Session, parentID *models.PageID) (*models.Page, error) {
	page := &models.Page{
		OwnerID:  sess.UserID,
		ParentID: parentID,
		Title:    DefaultTitle,
	}
	share := &models.Share{
		OwnerID:      sess.UserID,
		SharedUserID: sess.UserID,
		Permission:   models.FullAccess,
		Active:       true,
	}

	// Page and owner grant go through one store call: transactional where the
	// backend supports it, compensated otherwise. Either way a failure never
	// leaves a page without its owner grant.
	if err := m.store.CreatePageWithShare(ctx, page, share); err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// The invalidation evicts the parent's cached children; the next Expand
	// refetches and picks the new child up. Eviction is the one cache
	// mechanism for every mutation, local or remote.
	if parentID != nil {
		m.bus.Invalidate(Event{ParentID: *parentID, OwnerID: sess.UserID})
	} else {
		m.bus.Invalidate(Event{OwnerID: sess.UserID})
	}

	m.log.Info().Str("page_id", page.ID.String()).Msg("page created")
	return page, nil
}

// SoftDelete moves a page to the trash. Only the owner may delete. The
// parent's cache is invalidated only after the write succeeds, never
// optimistically, so a failed delete leaves the tree consistent.
func (m *Manager) SoftDelete(ctx context.Context, sess models.Session, pageID models.PageID) error {
	page, err := m.store.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return ErrPageNotFound
	}
	if page.OwnerID != sess.UserID {
		return sharing.ErrPermissionDenied
	}
	if page.IsDeleted {
		return nil
	}

	now := time.Now()
	page.IsDeleted = true
	page.DeletedAt = &now
	if err := m.store.UpdatePage(ctx, page); err != nil {
		return fmt.Errorf("failed to trash page: %w", err)
	}

	if page.ParentID != nil {
		m.bus.Invalidate(Event{ParentID: *page.ParentID, OwnerID: page.OwnerID})
	} else {
		m.bus.Invalidate(Event{OwnerID: page.OwnerID})
	}
	// Descendants are left untouched; they vanish from walks because no walk
	// descends through a trashed node.
	m.Collapse(pageID)

	m.log.Info().Str("page_id", pageID.String()).Msg("page trashed")
	return nil
}

// Restore brings a trashed page back. Only the owner may restore. The
// invalidation event makes subscribed nodes refetch, so the page reappears
// without manual cache surgery.
func (m *Manager) Restore(ctx context.Context, sess models.Session, pageID models.PageID) error {
	page, err := m.store.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return ErrPageNotFound
	}
	if page.OwnerID != sess.UserID {
		return sharing.ErrPermissionDenied
	}
	if !page.IsDeleted {
		return nil
	}

	page.IsDeleted = false
	page.DeletedAt = nil
	if err := m.store.UpdatePage(ctx, page); err != nil {
		return fmt.Errorf("failed to restore page: %w", err)
	}

	if page.ParentID != nil {
		m.bus.Invalidate(Event{ParentID: *page.ParentID, OwnerID: page.OwnerID})
	} else {
		m.bus.Invalidate(Event{OwnerID: page.OwnerID})
	}

	m.log.Info().Str("page_id", pageID.String()).Msg("page restored")
	return nil
}

// Rename updates the page title. The caller needs write access.
func (m *Manager) Rename(ctx context.Context, sess models.Session, pageID models.PageID, title string) error {
	return m.update(ctx, sess, pageID, func(p *models.Page) { p.Title = title })
}

// SetIcon updates the page logo URL. The caller needs write access.
func (m *Manager) SetIcon(ctx context.Context, sess models.Session, pageID models.PageID, url string) error {
	return m.update(ctx, sess, pageID, func(p *models.Page) { p.LogoURL = url })
}

// SetCover updates the page cover URL. The caller needs write access.
func (m *Manager) SetCover(ctx context.Context, sess models.Session, pageID models.PageID, url string) error {
	return m.update(ctx, sess, pageID, func(p *models.Page) { p.CoverURL = url })
}

// SetPublished toggles the public publish flag. The caller needs write
// access.
func (m *Manager) SetPublished(ctx context.Context, sess models.Session, pageID models.PageID, published bool) error {
	return m.update(ctx, sess, pageID, func(p *models.Page) { p.IsPublished = published })
}

func (m *Manager) update(ctx context.Context, sess models.Session, pageID models.PageID, mutate func(*models.Page)) error {
	if err := m.gate.RequireWrite(ctx, sess.UserID, pageID); err != nil {
		return err
	}
	page, err := m.store.GetPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil || page.IsDeleted {
		return ErrPageNotFound
	}

	mutate(page)
	if err := m.store.UpdatePage(ctx, page); err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}

	// Title and icon changes show up in the parent's cached listing.
	if page.ParentID != nil {
		m.bus.Invalidate(Event{ParentID: *page.ParentID, OwnerID: page.OwnerID})
	} else {
		m.bus.Invalidate(Event{OwnerID: page.OwnerID})
	}
	return nil
}
