// Package surrealdb provides the SurrealDB implementation of the
// [github.com/imkrishn/notex/pkg/store.Store] interface using native SurrealQL
// over the CBOR protocol.
//
// # CBOR marshaling
//
// SurrealDB uses CBOR internally, so the connection is configured with the
// surrealcbor codec rather than default JSON marshaling. Typed IDs
// (models.PageID and friends) implement MarshalCBOR/UnmarshalCBOR and convert
// automatically to SurrealDB RecordIDs (CBOR tag 8, [table, id]); the same
// model structs used by the PostgreSQL backend are stored directly, no
// translation layer is needed.
//
// # Query safety
//
// All filtered queries use parameterized SurrealQL ($param syntax). Never
// build queries with string interpolation of caller-provided values.
//
// # Consistency
//
// SurrealDB composes transactions within a single Query RPC call, which is
// how CreatePageWithShare gets its atomicity here: page and owner grant are
// created inside one BEGIN/COMMIT block instead of the compensated saga the
// in-memory backend uses.
//
// Usage:
//
//	store, err := surrealdb.NewSurrealStore(
//		"ws://localhost:8000/rpc",
//		"notex", "notex", "root", "root",
//	)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/store"
)

// SurrealStore implements the Store interface using SurrealDB with CBOR
// marshaling.
type SurrealStore struct {
	db       *surrealdb.DB
	ns       string
	database string
}

// NewSurrealStore creates a new SurrealDB store.
//
// The connection is configured manually rather than via FromEndpointURLString
// so the surrealcbor codec can be installed; without it time.Time values and
// RecordIDs are marshaled in formats SurrealDB rejects.
func NewSurrealStore(wsURL, namespace, database, username, password string) (store.Store, error) {
	ctx := context.Background()

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)

	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{
		db:       db,
		ns:       namespace,
		database: database,
	}, nil
}

// Migrate is a near no-op: SurrealDB creates tables implicitly on first
// insert. Kept for Store interface symmetry with the PostgreSQL backend.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	return nil
}

// Close closes the database connection
func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound maps the SDK's "no result" errors to nil so Get methods can
// return (nil, nil) for missing records.
func handleNotFound(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

func firstResult[T any](result *[]surrealdb.QueryResult[[]T]) []T {
	if result != nil && len(*result) > 0 {
		return (*result)[0].Result
	}
	return nil
}

// Page operations

func (s *SurrealStore) CreatePage(ctx context.Context, page *models.Page) error {
	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	}
	now := time.Now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = now
	}

	if _, err := surrealdb.Create[models.Page](ctx, s.db, "pages", page); err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

func (s *SurrealStore) CreatePageWithShare(ctx context.Context, page *models.Page, share *models.Share) error {
	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	}
	share.PageID = page.ID
	if share.ID.IsZero() {
		share.ID = models.NewShareID()
	}
	now := time.Now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now
	if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}
	share.UpdatedAt = now

	// Both records in one Query call so SurrealDB runs them as a single
	// transaction; a failed share write rolls the page back.
	query := `
BEGIN TRANSACTION;
CREATE $page_id CONTENT $page;
CREATE $share_id CONTENT $share;
COMMIT TRANSACTION;
`
	params := map[string]any{
		"page_id":  page.ID.RecordID(),
		"page":     page,
		"share_id": share.ID.RecordID(),
		"share":    share,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to create page with share: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetPage(ctx context.Context, id models.PageID) (*models.Page, error) {
	page, err := surrealdb.Select[models.Page](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

func (s *SurrealStore) UpdatePage(ctx context.Context, page *models.Page) error {
	page.UpdatedAt = time.Now()
	if _, err := surrealdb.Update[models.Page](ctx, s.db, page.ID.RecordID(), page); err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeletePage(ctx context.Context, id models.PageID) error {
	_, err := surrealdb.Delete[models.Page](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListRootPages(ctx context.Context, ownerID models.UserID) ([]*models.Page, error) {
	query := `
SELECT * FROM pages
WHERE owner_id = $owner AND (parent_id IS NONE OR parent_id IS NULL) AND is_deleted = false
ORDER BY updated_at DESC
`
	params := map[string]any{
		"owner": ownerID.RecordID(),
	}
	result, err := surrealdb.Query[[]*models.Page](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list root pages: %w", err)
	}
	pages := firstResult(result)
	if pages == nil {
		pages = []*models.Page{}
	}
	return pages, nil
}

func (s *SurrealStore) ListChildPages(ctx context.Context, parentID models.PageID) ([]*models.Page, error) {
	query := `
SELECT * FROM pages
WHERE parent_id = $parent AND is_deleted = false
ORDER BY updated_at DESC
`
	params := map[string]any{
		"parent": parentID.RecordID(),
	}
	result, err := surrealdb.Query[[]*models.Page](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list child pages: %w", err)
	}
	pages := firstResult(result)
	if pages == nil {
		pages = []*models.Page{}
	}
	return pages, nil
}

func (s *SurrealStore) ListTrashedPages(ctx context.Context, ownerID models.UserID, limit int, cursor models.PageID) ([]*models.Page, error) {
	params := map[string]any{
		"owner": ownerID.RecordID(),
		"limit": limit,
	}
	query := `
SELECT * FROM pages
WHERE owner_id = $owner AND is_deleted = true
ORDER BY deleted_at DESC
LIMIT $limit
`
	if !cursor.IsZero() {
		anchor, err := s.GetPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if anchor != nil && anchor.DeletedAt != nil {
			params["before"] = *anchor.DeletedAt
			query = `
SELECT * FROM pages
WHERE owner_id = $owner AND is_deleted = true AND deleted_at < $before
ORDER BY deleted_at DESC
LIMIT $limit
`
		}
	}
	result, err := surrealdb.Query[[]*models.Page](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list trashed pages: %w", err)
	}
	pages := firstResult(result)
	if pages == nil {
		pages = []*models.Page{}
	}
	return pages, nil
}

func (s *SurrealStore) ListPagesByOwner(ctx context.Context, ownerID models.UserID) ([]*models.Page, error) {
	query := `
SELECT * FROM pages
WHERE owner_id = $owner
ORDER BY updated_at DESC
`
	params := map[string]any{
		"owner": ownerID.RecordID(),
	}
	result, err := surrealdb.Query[[]*models.Page](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages by owner: %w", err)
	}
	pages := firstResult(result)
	if pages == nil {
		pages = []*models.Page{}
	}
	return pages, nil
}

// Block operations

func (s *SurrealStore) CreateBlock(ctx context.Context, block *models.Block) error {
	if block.ID.IsZero() {
		block.ID = models.NewBlockID()
	}
	now := time.Now()
	if block.CreatedAt.IsZero() {
		block.CreatedAt = now
	}
	if block.UpdatedAt.IsZero() {
		block.UpdatedAt = now
	}

	if _, err := surrealdb.Create[models.Block](ctx, s.db, "blocks", block); err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	block, err := surrealdb.Select[models.Block](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return block, nil
}

func (s *SurrealStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	// UPDATE on a missing record silently matches nothing, so check existence
	// first to preserve the ErrNotFound contract reconciliation depends on.
	existing, err := s.GetBlock(ctx, block.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return store.ErrNotFound
	}
	block.UpdatedAt = time.Now()
	if _, err := surrealdb.Update[models.Block](ctx, s.db, block.ID.RecordID(), block); err != nil {
		return fmt.Errorf("failed to update block: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteBlock(ctx context.Context, id models.BlockID) error {
	_, err := surrealdb.Delete[models.Block](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	query := `
SELECT * FROM blocks
WHERE page_id = $page
ORDER BY position ASC
`
	params := map[string]any{
		"page": pageID.RecordID(),
	}
	result, err := surrealdb.Query[[]*models.Block](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	blocks := firstResult(result)
	if blocks == nil {
		blocks = []*models.Block{}
	}
	return blocks, nil
}

func (s *SurrealStore) DeleteBlocksByPage(ctx context.Context, pageID models.PageID) error {
	query := "DELETE blocks WHERE page_id = $page"
	params := map[string]any{
		"page": pageID.RecordID(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to delete blocks for page: %w", err)
	}
	return nil
}

// User operations

func (s *SurrealStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	if _, err := surrealdb.Create[models.User](ctx, s.db, "users", user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	user, err := surrealdb.Select[models.User](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SurrealStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT * FROM users WHERE string::lowercase(email) = string::lowercase($email)"
	params := map[string]any{
		"email": email,
	}
	result, err := surrealdb.Query[[]models.User](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	users := firstResult(result)
	if len(users) > 0 {
		return &users[0], nil
	}
	return nil, nil
}

func (s *SurrealStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	if _, err := surrealdb.Update[models.User](ctx, s.db, user.ID.RecordID(), user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteUser(ctx context.Context, id models.UserID) error {
	_, err := surrealdb.Delete[models.User](ctx, s.db, id.RecordID())
	return err
}

// Share operations

func (s *SurrealStore) CreateShare(ctx context.Context, share *models.Share) error {
	if share.ID.IsZero() {
		share.ID = models.NewShareID()
	}
	now := time.Now()
	if share.CreatedAt.IsZero() {
		share.CreatedAt = now
	}
	if share.UpdatedAt.IsZero() {
		share.UpdatedAt = now
	}

	if _, err := surrealdb.Create[models.Share](ctx, s.db, "shares", share); err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetShare(ctx context.Context, id models.ShareID) (*models.Share, error) {
	share, err := surrealdb.Select[models.Share](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return share, nil
}

func (s *SurrealStore) UpdateShare(ctx context.Context, share *models.Share) error {
	share.UpdatedAt = time.Now()
	if _, err := surrealdb.Update[models.Share](ctx, s.db, share.ID.RecordID(), share); err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteShare(ctx context.Context, id models.ShareID) error {
	_, err := surrealdb.Delete[models.Share](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) FindShare(ctx context.Context, pageID models.PageID, ownerID, sharedUserID models.UserID) (*models.Share, error) {
	query := `
SELECT * FROM shares
WHERE page_id = $page AND owner_id = $owner AND shared_user_id = $shared
`
	params := map[string]any{
		"page":   pageID.RecordID(),
		"owner":  ownerID.RecordID(),
		"shared": sharedUserID.RecordID(),
	}
	result, err := surrealdb.Query[[]models.Share](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to find share: %w", err)
	}
	shares := firstResult(result)
	if len(shares) > 0 {
		return &shares[0], nil
	}
	return nil, nil
}

func (s *SurrealStore) ListSharesByPage(ctx context.Context, pageID models.PageID) ([]*models.Share, error) {
	query := "SELECT * FROM shares WHERE page_id = $page"
	params := map[string]any{
		"page": pageID.RecordID(),
	}
	result, err := surrealdb.Query[[]*models.Share](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares for page: %w", err)
	}
	shares := firstResult(result)
	if shares == nil {
		shares = []*models.Share{}
	}
	return shares, nil
}

func (s *SurrealStore) ListSharesForUser(ctx context.Context, sharedUserID models.UserID) ([]*models.Share, error) {
	query := "SELECT * FROM shares WHERE shared_user_id = $user AND active = true"
	params := map[string]any{
		"user": sharedUserID.RecordID(),
	}
	result, err := surrealdb.Query[[]*models.Share](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares for user: %w", err)
	}
	shares := firstResult(result)
	if shares == nil {
		shares = []*models.Share{}
	}
	return shares, nil
}

func (s *SurrealStore) DeleteSharesByPage(ctx context.Context, pageID models.PageID) error {
	query := "DELETE shares WHERE page_id = $page"
	params := map[string]any{
		"page": pageID.RecordID(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("failed to delete shares for page: %w", err)
	}
	return nil
}
