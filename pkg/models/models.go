package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Permission represents the access level a share grant confers on a page.
// The two levels form a simple lattice: ReadAccess < FullAccess. There are
// no groups and no transitivity; a grant applies to exactly one user and
// one page.
type Permission string

const (
	ReadAccess Permission = "READ_ACCESS"
	FullAccess Permission = "FULL_ACCESS"
)

// AllowsWrite reports whether the permission level permits mutations.
func (p Permission) AllowsWrite() bool { return p == FullAccess }

// Valid reports whether p is one of the known permission levels.
func (p Permission) Valid() bool {
	return p == ReadAccess || p == FullAccess
}

// JSONMap is a flexible key-value map for storing block content across database
// backends. The content payload is owned by the external editor framework and is
// treated as an opaque structured blob here: PostgreSQL stores it as JSONB and
// SurrealDB as a native object, so it stays queryable in both without this layer
// knowing its schema.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, j)
}

// Page is a single hierarchical note node. A nil ParentID marks a root page;
// the ancestor chain must never contain a cycle. Soft deletion is explicit
// (IsDeleted + DeletedAt) rather than gorm's DeletedAt so trashed pages stay
// queryable for the trash list and restorable without raw SQL.
type Page struct {
	ID          PageID     `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID     UserID     `gorm:"type:uuid;not null;index" json:"owner_id"`
	ParentID    *PageID    `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Title       string     `gorm:"not null" json:"title"`
	CoverURL    string     `json:"cover_url,omitempty"`
	LogoURL     string     `json:"logo_url,omitempty"`
	IsDeleted   bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	IsPublished bool       `gorm:"not null;default:false" json:"is_published"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPageID()
	}
	return nil
}

// IsRoot reports whether the page sits at the top of its tree.
func (p *Page) IsRoot() bool { return p.ParentID == nil }

// Block is one unit of content within a page body. Position defines the total
// order within the page by ascending sort. The ID is client-generated and
// stable across edits; Content is an opaque payload owned by the editor.
type Block struct {
	ID        BlockID   `gorm:"type:uuid;primary_key" json:"id"`
	PageID    PageID    `gorm:"type:uuid;not null;index" json:"page_id"`
	Position  int       `gorm:"not null" json:"position"`
	Content   JSONMap   `gorm:"type:jsonb" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (b *Block) BeforeCreate(tx *gorm.DB) error {
	if b.ID.IsZero() {
		b.ID = NewBlockID()
	}
	return nil
}

// User represents a user account. Authentication itself is an external
// collaborator; user rows exist so share grants can be keyed by a user ID
// resolved from an invited email address.
type User struct {
	ID        UserID    `gorm:"type:uuid;primary_key" json:"id"`
	Email     string    `gorm:"unique;not null" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsZero() {
		u.ID = NewUserID()
	}
	return nil
}

// Share grants a non-owner user access to a page without transferring
// ownership. Grants are keyed by (PageID, OwnerID, SharedUserID); the page
// owner always implicitly holds FullAccess regardless of grant rows.
type Share struct {
	ID           ShareID    `gorm:"type:uuid;primary_key" json:"id"`
	PageID       PageID     `gorm:"type:uuid;not null;index" json:"page_id"`
	OwnerID      UserID     `gorm:"type:uuid;not null" json:"owner_id"`
	SharedUserID UserID     `gorm:"type:uuid;not null;index" json:"shared_user_id"`
	Permission   Permission `gorm:"not null" json:"permission"`
	Active       bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (s *Share) BeforeCreate(tx *gorm.DB) error {
	if s.ID.IsZero() {
		s.ID = NewShareID()
	}
	return nil
}

// Session is the externally-resolved identity of the current caller. It is
// passed explicitly into every component that needs it; nothing in this
// module reads ambient per-request state.
type Session struct {
	UserID UserID `json:"user_id"`
	Email  string `json:"email"`
}
