// Package memory provides an in-process implementation of the
// [github.com/imkrishn/notex/pkg/store.Store] interface backed by
// mutex-guarded maps.
//
// It exists for unit tests and local development where neither PostgreSQL nor
// SurrealDB is available. Semantics mirror the real backends: Get returns
// (nil, nil) for missing records, UpdateBlock returns store.ErrNotFound when
// the row is absent, list methods apply the same visibility filters, and
// CreatePageWithShare runs as a compensated saga since there is no
// transaction to lean on.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/store"
)

// MemoryStore implements the Store interface with in-process maps.
type MemoryStore struct {
	mu     sync.RWMutex
	pages  map[models.PageID]*models.Page
	blocks map[models.BlockID]*models.Block
	users  map[models.UserID]*models.User
	shares map[models.ShareID]*models.Share
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages:  make(map[models.PageID]*models.Page),
		blocks: make(map[models.BlockID]*models.Block),
		users:  make(map[models.UserID]*models.User),
		shares: make(map[models.ShareID]*models.Share),
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

// Page operations

func (s *MemoryStore) CreatePage(ctx context.Context, page *models.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPageLocked(page)
}

func (s *MemoryStore) createPageLocked(page *models.Page) error {
	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	} else if _, ok := s.pages[page.ID]; ok {
		// Same failure a primary-key constraint raises in the SQL backend.
		return fmt.Errorf("page %s already exists", page.ID)
	}
	now := time.Now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now
	cp := *page
	s.pages[page.ID] = &cp
	return nil
}

func (s *MemoryStore) CreatePageWithShare(ctx context.Context, page *models.Page, share *models.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createPageLocked(page); err != nil {
		return err
	}
	share.PageID = page.ID
	if err := s.createShareLocked(share); err != nil {
		// Compensating delete so a half-created page never survives.
		delete(s.pages, page.ID)
		return err
	}
	return nil
}

func (s *MemoryStore) GetPage(ctx context.Context, id models.PageID) (*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[id]
	if !ok {
		return nil, nil
	}
	cp := *page
	return &cp, nil
}

func (s *MemoryStore) UpdatePage(ctx context.Context, page *models.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[page.ID]; !ok {
		return store.ErrNotFound
	}
	page.UpdatedAt = time.Now()
	cp := *page
	s.pages[page.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePage(ctx context.Context, id models.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, id)
	return nil
}

func (s *MemoryStore) ListRootPages(ctx context.Context, ownerID models.UserID) ([]*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := []*models.Page{}
	for _, p := range s.pages {
		if p.OwnerID == ownerID && p.ParentID == nil && !p.IsDeleted {
			cp := *p
			pages = append(pages, &cp)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].UpdatedAt.After(pages[j].UpdatedAt)
	})
	return pages, nil
}

func (s *MemoryStore) ListChildPages(ctx context.Context, parentID models.PageID) ([]*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := []*models.Page{}
	for _, p := range s.pages {
		if p.ParentID != nil && *p.ParentID == parentID && !p.IsDeleted {
			cp := *p
			pages = append(pages, &cp)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].UpdatedAt.After(pages[j].UpdatedAt)
	})
	return pages, nil
}

func (s *MemoryStore) ListTrashedPages(ctx context.Context, ownerID models.UserID, limit int, cursor models.PageID) ([]*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trashed := []*models.Page{}
	for _, p := range s.pages {
		if p.OwnerID == ownerID && p.IsDeleted {
			cp := *p
			trashed = append(trashed, &cp)
		}
	}
	sort.Slice(trashed, func(i, j int) bool {
		ti, tj := trashed[i].DeletedAt, trashed[j].DeletedAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		if ti.Equal(*tj) {
			// Stable order for equal timestamps so cursors stay meaningful.
			return strings.Compare(trashed[i].ID.String(), trashed[j].ID.String()) < 0
		}
		return ti.After(*tj)
	})
	start := 0
	if !cursor.IsZero() {
		for i, p := range trashed {
			if p.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(trashed) {
		return []*models.Page{}, nil
	}
	trashed = trashed[start:]
	if limit > 0 && len(trashed) > limit {
		trashed = trashed[:limit]
	}
	return trashed, nil
}

func (s *MemoryStore) ListPagesByOwner(ctx context.Context, ownerID models.UserID) ([]*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := []*models.Page{}
	for _, p := range s.pages {
		if p.OwnerID == ownerID {
			cp := *p
			pages = append(pages, &cp)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].UpdatedAt.After(pages[j].UpdatedAt)
	})
	return pages, nil
}

// Block operations

func (s *MemoryStore) CreateBlock(ctx context.Context, block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block.ID.IsZero() {
		block.ID = models.NewBlockID()
	} else if _, ok := s.blocks[block.ID]; ok {
		return fmt.Errorf("block %s already exists", block.ID)
	}
	now := time.Now()
	if block.CreatedAt.IsZero() {
		block.CreatedAt = now
	}
	block.UpdatedAt = now
	cp := *block
	s.blocks[block.ID] = &cp
	return nil
}

func (s *MemoryStore) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.blocks[id]
	if !ok {
		return nil, nil
	}
	cp := *block
	return &cp, nil
}

func (s *MemoryStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.blocks[block.ID]
	if !ok {
		return store.ErrNotFound
	}
	block.CreatedAt = existing.CreatedAt
	block.UpdatedAt = time.Now()
	cp := *block
	s.blocks[block.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteBlock(ctx context.Context, id models.BlockID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, id)
	return nil
}

func (s *MemoryStore) ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blocks := []*models.Block{}
	for _, b := range s.blocks {
		if b.PageID == pageID {
			cp := *b
			blocks = append(blocks, &cp)
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Position < blocks[j].Position
	})
	return blocks, nil
}

func (s *MemoryStore) DeleteBlocksByPage(ctx context.Context, pageID models.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.blocks {
		if b.PageID == pageID {
			delete(s.blocks, id)
		}
	}
	return nil
}

// User operations

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	} else if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id models.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// Share operations

func (s *MemoryStore) CreateShare(ctx context.Context, share *models.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createShareLocked(share)
}

func (s *MemoryStore) createShareLocked(share *models.Share) error {
	if share.ID.IsZero() {
		share.ID = models.NewShareID()
	} else if _, ok := s.shares[share.ID]; ok {
		return fmt.Errorf("share %s already exists", share.ID)
	}
	now := time.Now()
	if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}
	share.UpdatedAt = now
	cp := *share
	s.shares[share.ID] = &cp
	return nil
}

func (s *MemoryStore) GetShare(ctx context.Context, id models.ShareID) (*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	share, ok := s.shares[id]
	if !ok {
		return nil, nil
	}
	cp := *share
	return &cp, nil
}

func (s *MemoryStore) UpdateShare(ctx context.Context, share *models.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[share.ID]; !ok {
		return store.ErrNotFound
	}
	share.UpdatedAt = time.Now()
	cp := *share
	s.shares[share.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteShare(ctx context.Context, id models.ShareID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shares, id)
	return nil
}

func (s *MemoryStore) FindShare(ctx context.Context, pageID models.PageID, ownerID, sharedUserID models.UserID) (*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sh := range s.shares {
		if sh.PageID == pageID && sh.OwnerID == ownerID && sh.SharedUserID == sharedUserID {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListSharesByPage(ctx context.Context, pageID models.PageID) ([]*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shares := []*models.Share{}
	for _, sh := range s.shares {
		if sh.PageID == pageID {
			cp := *sh
			shares = append(shares, &cp)
		}
	}
	return shares, nil
}

func (s *MemoryStore) ListSharesForUser(ctx context.Context, sharedUserID models.UserID) ([]*models.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shares := []*models.Share{}
	for _, sh := range s.shares {
		if sh.SharedUserID == sharedUserID && sh.Active {
			cp := *sh
			shares = append(shares, &cp)
		}
	}
	return shares, nil
}

func (s *MemoryStore) DeleteSharesByPage(ctx context.Context, pageID models.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sh := range s.shares {
		if sh.PageID == pageID {
			delete(s.shares, id)
		}
	}
	return nil
}
