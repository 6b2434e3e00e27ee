// Package pkg contains the sub-packages of the notex application.
//
// The layering is conventional: [github.com/imkrishn/notex/pkg/models] holds
// the domain entities, [github.com/imkrishn/notex/pkg/store] and its
// backends hold persistence, the domain managers (tree, reconcile, sharing,
// trash, session) implement behavior over the store, and
// [github.com/imkrishn/notex/pkg/notex] exposes it all over HTTP. The
// [github.com/imkrishn/notex/pkg/client] package is the typed API client and
// [github.com/imkrishn/notex/pkg/notextesting] simulates users for
// end-to-end tests.
package pkg
