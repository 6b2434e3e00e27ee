// Package models defines the domain entities of the note-taking application
// and their typed identifiers.
//
// # Entities
//
//   - [Page]: a node in the page tree. A nil ParentID marks a root page.
//     Soft deletion is explicit (IsDeleted plus DeletedAt) so trashed pages
//     stay queryable for the trash listing and restorable in place.
//   - [Block]: one unit of content inside a page body. Position carries the
//     total order within the page; Content is an opaque JSON payload owned by
//     the editor framework.
//   - [User]: an account row. Credential handling lives outside this module;
//     user rows exist so share grants can reference a user resolved from an
//     email address.
//   - [Share]: a grant giving one user access to one page at [ReadAccess] or
//     [FullAccess]. The owner implicitly holds FullAccess without a row.
//   - [Session]: the externally-resolved identity of the current caller,
//     passed explicitly into every operation that needs one.
//
// # Typed identifiers
//
// Every entity gets its own ID type ([PageID], [BlockID], [UserID],
// [ShareID]) wrapping a UUID. The compiler then rejects passing a block ID
// where a page ID belongs, which matters in a schema where almost every
// column is a UUID. Each type carries the marshaling glue for all three
// storage representations: JSON string for the HTTP API, CBOR record ID for
// SurrealDB, and plain UUID string for PostgreSQL via driver.Valuer and
// sql.Scanner.
package models
