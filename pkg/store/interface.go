// Package store provides the persistence gateway abstraction for the notex
// application.
//
// This package defines the [Store] interface which enables the application to
// work with different database backends while maintaining a unified API. Three
// implementations exist:
//
//   - [github.com/imkrishn/notex/pkg/store/postgres.PostgresStore]: GORM-based
//     relational store with ACID transactions
//   - [github.com/imkrishn/notex/pkg/store/surrealdb.SurrealStore]: native
//     SurrealQL over the CBOR protocol, no ORM
//   - [github.com/imkrishn/notex/pkg/store/memory.MemoryStore]: mutex-guarded
//     in-process maps, used by tests and local development
//
// # Conventions
//
// Create methods auto-generate IDs when the entity's ID is zero. Get methods
// return (nil, nil) for missing records; errors are reserved for transport and
// query failures. Update methods perform full entity replacement. List methods
// return empty slices for no results, never nil. All methods accept a
// context.Context for cancellation and timeouts.
//
// # Soft deletion
//
// Pages are soft-deleted by the callers of this package (the tree manager sets
// IsDeleted and DeletedAt through UpdatePage); DeletePage here is the hard
// delete used by the trash purge path. The filtered list methods
// (ListRootPages, ListChildPages) exclude soft-deleted rows at the query
// level, while ListTrashedPages returns only soft-deleted rows.
package store

import (
	"context"

	"github.com/imkrishn/notex/pkg/models"
)

// Store defines the complete persistence interface for the notex application.
type Store interface {
	// Page Operations
	//
	// Pages form a forest via the nullable ParentID. Visibility filtering by
	// IsDeleted happens here so callers never see trashed pages in tree walks.

	// CreatePage persists a new page. A zero ID is replaced with a fresh one.
	CreatePage(ctx context.Context, page *models.Page) error

	// CreatePageWithShare persists a page together with its owner share grant.
	//
	// Backends with multi-row transactions perform both writes atomically.
	// Backends without them run a saga: the page is created first and removed
	// again if the share write fails, so a failure never leaves an orphaned
	// page without an owner grant.
	CreatePageWithShare(ctx context.Context, page *models.Page, share *models.Share) error

	// GetPage retrieves a page by ID, returning nil if it does not exist.
	// Soft-deleted pages are returned too; callers that need visibility
	// filtering check IsDeleted themselves.
	GetPage(ctx context.Context, id models.PageID) (*models.Page, error)

	// UpdatePage replaces an existing page. The UpdatedAt timestamp is managed
	// by the store implementation.
	UpdatePage(ctx context.Context, page *models.Page) error

	// DeletePage removes the page row permanently. This is the purge path;
	// soft deletion goes through UpdatePage. Blocks and shares are not
	// cascaded here, callers remove them explicitly first.
	DeletePage(ctx context.Context, id models.PageID) error

	// ListRootPages returns the visible root pages owned by ownerID
	// (ParentID null, not deleted), ordered by UpdatedAt descending.
	ListRootPages(ctx context.Context, ownerID models.UserID) ([]*models.Page, error)

	// ListChildPages returns the visible direct children of parentID
	// (not deleted), ordered by UpdatedAt descending. Only one level is
	// returned; deeper descendants require separate calls.
	ListChildPages(ctx context.Context, parentID models.PageID) ([]*models.Page, error)

	// ListTrashedPages returns soft-deleted pages owned by ownerID, ordered by
	// DeletedAt descending, at most limit rows, starting after the page
	// identified by cursor when cursor is non-zero.
	ListTrashedPages(ctx context.Context, ownerID models.UserID, limit int, cursor models.PageID) ([]*models.Page, error)

	// ListPagesByOwner returns every page owned by ownerID regardless of
	// position in the tree or deletion state. Account-scoped maintenance
	// (export, bulk cleanup) uses this; tree walks never do.
	ListPagesByOwner(ctx context.Context, ownerID models.UserID) ([]*models.Page, error)

	// Block Operations
	//
	// Blocks are the durable mirror of the editor document. The Content field
	// is opaque; only ID, PageID and Position are meaningful to the store.

	// CreateBlock persists a new block. Block IDs are normally supplied by the
	// caller (they are client-generated and stable across edits).
	CreateBlock(ctx context.Context, block *models.Block) error

	// GetBlock retrieves a block by ID, returning nil if it does not exist.
	GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error)

	// UpdateBlock replaces an existing block. Implementations return
	// ErrNotFound when no row matches so reconciliation can fall back to
	// CreateBlock.
	UpdateBlock(ctx context.Context, block *models.Block) error

	// DeleteBlock removes a block permanently.
	DeleteBlock(ctx context.Context, id models.BlockID) error

	// ListBlocks returns all blocks of a page ordered by ascending Position.
	ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error)

	// DeleteBlocksByPage removes every block belonging to pageID. Used by the
	// trash purge path.
	DeleteBlocksByPage(ctx context.Context, pageID models.PageID) error

	// User Operations
	//
	// Authentication is an external concern; user rows exist so share grants
	// can reference users resolved from invited email addresses.

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id models.UserID) error

	// Share Operations
	//
	// Share grants are keyed by (PageID, OwnerID, SharedUserID). FindShare is
	// the lookup used for upsert-style invites and for permission resolution.

	CreateShare(ctx context.Context, share *models.Share) error
	GetShare(ctx context.Context, id models.ShareID) (*models.Share, error)
	UpdateShare(ctx context.Context, share *models.Share) error
	DeleteShare(ctx context.Context, id models.ShareID) error

	// FindShare returns the grant matching the composite key, or nil if none
	// exists.
	FindShare(ctx context.Context, pageID models.PageID, ownerID, sharedUserID models.UserID) (*models.Share, error)

	// ListSharesByPage returns all grants on a page, active or not.
	ListSharesByPage(ctx context.Context, pageID models.PageID) ([]*models.Share, error)

	// ListSharesForUser returns the active grants naming sharedUserID as the
	// recipient, across all pages.
	ListSharesForUser(ctx context.Context, sharedUserID models.UserID) ([]*models.Share, error)

	// DeleteSharesByPage removes every grant on pageID. Used by the trash
	// purge path.
	DeleteSharesByPage(ctx context.Context, pageID models.PageID) error

	// Migrate initializes or updates the backend schema. It is idempotent and
	// safe to run at every startup.
	Migrate(ctx context.Context) error

	// Close releases connections and cleans up resources. Multiple calls are
	// safe.
	Close() error
}
