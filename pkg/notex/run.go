package notex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
//
// # API Endpoints
//
// Health check:
//
//	GET    /api/health                      - Service health status
//
// Authentication:
//
//	POST   /api/auth/signup                 - Register a user account
//	POST   /api/auth/signin                 - Start a session, returns a bearer token
//	POST   /api/auth/signout                - End the current session
//	GET    /api/auth/me                     - Current authenticated user
//
// Pages:
//
//	GET    /api/pages                       - List the caller's root pages
//	POST   /api/pages                       - Create a root page
//	GET    /api/pages/{id}                  - Get a page
//	PATCH  /api/pages/{id}                  - Update title, icon, cover or publish flag
//	DELETE /api/pages/{id}                  - Move a page to the trash
//	GET    /api/pages/{id}/children         - List child pages
//	POST   /api/pages/{id}/children         - Create a child page
//
// Blocks:
//
//	GET    /api/pages/{id}/blocks           - Load the page's blocks in order
//	PUT    /api/pages/{id}/blocks           - Replace the page's block list
//	POST   /api/pages/{id}/blocks/flush     - Persist any pending debounced writes
//
// Sharing:
//
//	GET    /api/pages/{id}/shares           - List grants on a page (owner only)
//	POST   /api/pages/{id}/shares           - Invite a user by email
//	DELETE /api/pages/{id}/shares           - Revoke a user's grant
//	GET    /api/shared                      - Pages shared with the caller
//
// Trash:
//
//	GET    /api/trash                       - List trashed pages (paginated)
//	POST   /api/trash/{id}/restore          - Restore a trashed page
//	DELETE /api/trash/{id}?confirm=true     - Permanently delete a trashed page
//
// Every endpoint except health and signup/signin requires a bearer token.
// Permission checks run server-side in the handlers; the UI hiding a control
// is never the enforcement point.
//
// On shutdown the server allows up to 5 seconds for in-flight requests, then
// App.Close flushes any pending block writes.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	router := a.Router()

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info().Str("addr", addr).Str("store", a.config.StoreBackend).Msg("starting notex server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Router builds the HTTP route table. Tests mount it on an httptest server
// instead of going through Run.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/auth/signup", a.handleSignUp).Methods("POST")
	api.HandleFunc("/auth/signin", a.handleSignIn).Methods("POST")
	api.HandleFunc("/auth/signout", a.handleSignOut).Methods("POST")
	api.HandleFunc("/auth/me", a.handleGetCurrentUser).Methods("GET")

	api.HandleFunc("/pages", a.handleListRootPages).Methods("GET")
	api.HandleFunc("/pages", a.handleCreateRootPage).Methods("POST")
	api.HandleFunc("/pages/{id}", a.handleGetPage).Methods("GET")
	api.HandleFunc("/pages/{id}", a.handleUpdatePage).Methods("PATCH")
	api.HandleFunc("/pages/{id}", a.handleDeletePage).Methods("DELETE")
	api.HandleFunc("/pages/{id}/children", a.handleListChildren).Methods("GET")
	api.HandleFunc("/pages/{id}/children", a.handleCreateChildPage).Methods("POST")

	api.HandleFunc("/pages/{id}/blocks", a.handleGetBlocks).Methods("GET")
	api.HandleFunc("/pages/{id}/blocks", a.handlePutBlocks).Methods("PUT")
	api.HandleFunc("/pages/{id}/blocks/flush", a.handleFlushBlocks).Methods("POST")

	api.HandleFunc("/pages/{id}/shares", a.handleListShares).Methods("GET")
	api.HandleFunc("/pages/{id}/shares", a.handleInvite).Methods("POST")
	api.HandleFunc("/pages/{id}/shares", a.handleRevoke).Methods("DELETE")
	api.HandleFunc("/shared", a.handleListShared).Methods("GET")

	api.HandleFunc("/trash", a.handleListTrash).Methods("GET")
	api.HandleFunc("/trash/{id}/restore", a.handleRestorePage).Methods("POST")
	api.HandleFunc("/trash/{id}", a.handlePurgePage).Methods("DELETE")

	// Health check outside the /api prefix for load balancers.
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return router
}
