package notex

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/sharing"
	"github.com/imkrishn/notex/pkg/store"
	"github.com/imkrishn/notex/pkg/trash"
	"github.com/imkrishn/notex/pkg/tree"
)

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		// Headers are already out the door, so encode errors have nowhere
		// useful to go.
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError writes a JSON error response with a consistent shape.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// respondStoreError maps domain errors onto HTTP status codes. Permission
// failures and missing pages both come back from the domain layer as typed
// sentinels, so the mapping lives in one place.
func (a *App) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sharing.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, tree.ErrPageNotFound):
		respondError(w, http.StatusNotFound, "page not found")
	case errors.Is(err, sharing.ErrUnknownUser):
		respondError(w, http.StatusNotFound, "unknown user")
	case errors.Is(err, trash.ErrNotTrashed):
		respondError(w, http.StatusConflict, "page is not in the trash")
	case errors.Is(err, store.ErrReadOnly):
		respondError(w, http.StatusServiceUnavailable, "server is in read-only mode")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// pageIDFromRequest parses the {id} route variable. On failure it writes a
// 400 and returns ok=false.
func pageIDFromRequest(w http.ResponseWriter, r *http.Request) (models.PageID, bool) {
	id, err := models.ParsePageID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid page ID")
		return models.PageID{}, false
	}
	return id, true
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"store":     a.config.StoreBackend,
		"read_only": a.IsReadOnly(),
		"time":      time.Now().Unix(),
	})
}

// Page handlers.

func (a *App) handleListRootPages(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pages, err := a.tree.ListRoots(r.Context(), sess)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pages)
}

func (a *App) handleCreateRootPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	page, err := a.tree.CreateRoot(r.Context(), sess)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, page)
}

func (a *App) handleGetPage(w http.ResponseWriter, r *http.Request) {
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	page, err := a.store.GetPage(r.Context(), pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if page == nil || page.IsDeleted {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}

	// Published pages are world-readable; everything else needs a session
	// holding at least ReadAccess.
	if !page.IsPublished {
		sess, ok := a.requireSession(w, r)
		if !ok {
			return
		}
		if _, err := a.gate.Resolve(r.Context(), sess.UserID, pageID); err != nil {
			a.respondStoreError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, page)
}

type updatePageRequest struct {
	Title       *string `json:"title,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty"`
	IsPublished *bool   `json:"is_published,omitempty"`
}

func (a *App) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	var req updatePageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	ctx := r.Context()
	if req.Title != nil {
		if err := a.tree.Rename(ctx, sess, pageID, *req.Title); err != nil {
			a.respondStoreError(w, err)
			return
		}
	}
	if req.LogoURL != nil {
		if err := a.tree.SetIcon(ctx, sess, pageID, *req.LogoURL); err != nil {
			a.respondStoreError(w, err)
			return
		}
	}
	if req.CoverURL != nil {
		if err := a.tree.SetCover(ctx, sess, pageID, *req.CoverURL); err != nil {
			a.respondStoreError(w, err)
			return
		}
	}
	if req.IsPublished != nil {
		if err := a.tree.SetPublished(ctx, sess, pageID, *req.IsPublished); err != nil {
			a.respondStoreError(w, err)
			return
		}
	}

	page, err := a.store.GetPage(ctx, pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if page == nil {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (a *App) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	if err := a.tree.SoftDelete(r.Context(), sess, pageID); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "trashed"})
}

func (a *App) handleListChildren(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	if _, err := a.gate.Resolve(r.Context(), sess.UserID, pageID); err != nil {
		a.respondStoreError(w, err)
		return
	}
	pages, err := a.tree.Expand(r.Context(), pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pages)
}

func (a *App) handleCreateChildPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	page, err := a.tree.CreateChild(r.Context(), sess, pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, page)
}

// Block handlers.

func (a *App) handleGetBlocks(w http.ResponseWriter, r *http.Request) {
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	page, err := a.store.GetPage(r.Context(), pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if page == nil || page.IsDeleted {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}
	if !page.IsPublished {
		sess, ok := a.requireSession(w, r)
		if !ok {
			return
		}
		if _, err := a.gate.Resolve(r.Context(), sess.UserID, pageID); err != nil {
			a.respondStoreError(w, err)
			return
		}
	}

	blocks, err := a.engine.Load(r.Context(), pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, blocks)
}

// handlePutBlocks replaces the page's persisted block list with the submitted
// one. The client debounces keystrokes on its side; by the time a request
// arrives here the state is final, so reconciliation runs synchronously.
func (a *App) handlePutBlocks(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	var blocks []*models.Block
	if err := decodeJSON(r, &blocks); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := a.gate.RequireWrite(r.Context(), sess.UserID, pageID); err != nil {
		a.respondStoreError(w, err)
		return
	}
	for _, b := range blocks {
		if b.ID.IsZero() {
			b.ID = models.NewBlockID()
		}
	}
	if err := a.engine.Reconcile(r.Context(), pageID, blocks); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, blocks)
}

// handleFlushBlocks persists any debounced state still pending in the engine.
// Embedding callers use the debounced path; over HTTP this is mostly a
// pre-navigation safety valve.
func (a *App) handleFlushBlocks(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	if err := a.gate.RequireWrite(r.Context(), sess.UserID, pageID); err != nil {
		a.respondStoreError(w, err)
		return
	}
	if err := a.engine.Flush(r.Context()); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

// Sharing handlers.

type inviteRequest struct {
	Email      string            `json:"email"`
	Permission models.Permission `json:"permission"`
}

type revokeRequest struct {
	Email string `json:"email"`
}

func (a *App) handleListShares(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	shares, err := a.gate.ListShares(r.Context(), sess, pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shares)
}

func (a *App) handleInvite(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	if !req.Permission.Valid() {
		respondError(w, http.StatusBadRequest, "permission must be READ_ACCESS or FULL_ACCESS")
		return
	}

	share, err := a.gate.Invite(r.Context(), sess, pageID, req.Email, req.Permission)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, share)
}

func (a *App) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	var req revokeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := a.gate.Revoke(r.Context(), sess, pageID, req.Email); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (a *App) handleListShared(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pages, err := a.gate.ListSharedWithMe(r.Context(), sess)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pages)
}

// Trash handlers.

type trashListResponse struct {
	Pages      []*models.Page `json:"pages"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

func (a *App) handleListTrash(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	var cursor models.PageID
	if v := r.URL.Query().Get("cursor"); v != "" {
		id, err := models.ParsePageID(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = id
	}

	pages, nextCursor, hasMore, err := a.trash.List(r.Context(), sess, limit, cursor)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	resp := trashListResponse{Pages: pages, HasMore: hasMore}
	if hasMore {
		resp.NextCursor = nextCursor.String()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *App) handleRestorePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	if err := a.trash.Restore(r.Context(), sess, pageID); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// handlePurgePage permanently deletes a trashed page. Purging cannot be
// undone, so the request must carry confirm=true; the confirmation dialog
// belongs to the client, the requirement belongs here.
func (a *App) handlePurgePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	pageID, ok := pageIDFromRequest(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusBadRequest, "permanent deletion requires confirm=true")
		return
	}
	if err := a.trash.Purge(r.Context(), sess, pageID); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}
