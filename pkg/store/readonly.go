package store

import (
	"context"
	"fmt"

	"github.com/imkrishn/notex/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects write operations while read-only
// mode is active.
//
// The read-only state is determined dynamically by the isReadOnly function, so
// the application can toggle between read-write and read-only modes without
// recreating the store. The main use is maintenance windows; read operations
// keep working throughout.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a new read-only wrapper for a store
func NewReadOnlyStore(store Store, isReadOnly func() bool) Store {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

// checkReadOnly returns an error if the store is in read-only mode
func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return fmt.Errorf("operation denied: %w", ErrReadOnly)
	}
	return nil
}

// Write operations check read-only mode first

func (r *ReadOnlyStore) CreatePage(ctx context.Context, page *models.Page) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreatePage(ctx, page)
}

func (r *ReadOnlyStore) CreatePageWithShare(ctx context.Context, page *models.Page, share *models.Share) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreatePageWithShare(ctx, page, share)
}

func (r *ReadOnlyStore) UpdatePage(ctx context.Context, page *models.Page) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdatePage(ctx, page)
}

func (r *ReadOnlyStore) DeletePage(ctx context.Context, id models.PageID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeletePage(ctx, id)
}

func (r *ReadOnlyStore) CreateBlock(ctx context.Context, block *models.Block) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateBlock(ctx, block)
}

func (r *ReadOnlyStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateBlock(ctx, block)
}

func (r *ReadOnlyStore) DeleteBlock(ctx context.Context, id models.BlockID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteBlock(ctx, id)
}

func (r *ReadOnlyStore) DeleteBlocksByPage(ctx context.Context, pageID models.PageID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteBlocksByPage(ctx, pageID)
}

func (r *ReadOnlyStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateUser(ctx, user)
}

func (r *ReadOnlyStore) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateUser(ctx, user)
}

func (r *ReadOnlyStore) DeleteUser(ctx context.Context, id models.UserID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteUser(ctx, id)
}

func (r *ReadOnlyStore) CreateShare(ctx context.Context, share *models.Share) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateShare(ctx, share)
}

func (r *ReadOnlyStore) UpdateShare(ctx context.Context, share *models.Share) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateShare(ctx, share)
}

func (r *ReadOnlyStore) DeleteShare(ctx context.Context, id models.ShareID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteShare(ctx, id)
}

func (r *ReadOnlyStore) DeleteSharesByPage(ctx context.Context, pageID models.PageID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteSharesByPage(ctx, pageID)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}

// Read operations pass through without checks via the embedded Store.
