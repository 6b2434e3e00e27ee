// Package notex is a hierarchical note-taking backend: pages nest into
// trees, page bodies are ordered lists of editor-owned blocks, and pages can
// be shared between users with read or full access.
//
// The module is organized around a storage abstraction and a set of domain
// managers layered on top of it:
//
//   - [github.com/imkrishn/notex/pkg/models] defines the entities (Page,
//     Block, User, Share) and their typed UUID identifiers.
//   - [github.com/imkrishn/notex/pkg/store] is the persistence interface,
//     implemented for PostgreSQL (GORM), SurrealDB and an in-memory map.
//   - [github.com/imkrishn/notex/pkg/tree] manages the page hierarchy with
//     lazy child loading, caching and soft deletion.
//   - [github.com/imkrishn/notex/pkg/reconcile] debounces block edits and
//     converges persisted rows with the live document.
//   - [github.com/imkrishn/notex/pkg/sharing] resolves permissions and
//     manages share grants.
//   - [github.com/imkrishn/notex/pkg/trash] lists, restores and purges
//     soft-deleted pages.
//   - [github.com/imkrishn/notex/pkg/session] maps bearer tokens to user
//     sessions, backed by Redis or memory.
//   - [github.com/imkrishn/notex/pkg/notex] wires everything into an HTTP
//     API and the command line entry point.
//   - [github.com/imkrishn/notex/pkg/client] is a typed Go client for the
//     API.
//
// The binary lives in cmd/notex:
//
//	notex migrate                 # create or update the database schema
//	notex run                     # start the server (PostgreSQL by default)
//	notex -store surrealdb run    # run against SurrealDB
//	notex -store memory run       # in-process store for development
package notex
