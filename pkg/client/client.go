// Package client provides a typed HTTP client for the notex API.
//
// The client mirrors the server's endpoint structure with one method per
// operation, shares the [github.com/imkrishn/notex/pkg/models] entities with
// the server, and manages the bearer token automatically after SignUp or
// SignIn. Instances are safe for concurrent use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/imkrishn/notex/pkg/models"
)

// Client provides typed access to the notex REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// NewClient creates an API client for the server at baseURL, which should
// include protocol and host without a trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAuthToken sets the bearer token for subsequent requests. SignUp and
// SignIn call this automatically.
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// doRequest performs an HTTP request with JSON and auth headers.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into the target struct.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Health checks the health status of the server.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Pages

// ListRootPages lists the caller's root pages, most recently updated first.
func (c *Client) ListRootPages(ctx context.Context) ([]*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/pages", nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateRootPage creates a new top-level page.
func (c *Client) CreateRootPage(ctx context.Context) (*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/pages", nil)
	if err != nil {
		return nil, err
	}

	var result models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetPage retrieves a page by ID.
func (c *Client) GetPage(ctx context.Context, id models.PageID) (*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/pages/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// UpdatePageRequest carries the fields a PATCH can change. Nil fields are
// left untouched.
type UpdatePageRequest struct {
	Title       *string `json:"title,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty"`
	IsPublished *bool   `json:"is_published,omitempty"`
}

// UpdatePage applies a partial update to a page and returns the result.
func (c *Client) UpdatePage(ctx context.Context, id models.PageID, req UpdatePageRequest) (*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/pages/%s", id), req)
	if err != nil {
		return nil, err
	}

	var result models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// RenamePage changes a page's title.
func (c *Client) RenamePage(ctx context.Context, id models.PageID, title string) (*models.Page, error) {
	return c.UpdatePage(ctx, id, UpdatePageRequest{Title: &title})
}

// DeletePage moves a page to the trash.
func (c *Client) DeletePage(ctx context.Context, id models.PageID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/pages/%s", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ListChildren lists a page's visible children.
func (c *Client) ListChildren(ctx context.Context, id models.PageID) ([]*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/pages/%s/children", id), nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateChildPage creates a new page under the given parent.
func (c *Client) CreateChildPage(ctx context.Context, parentID models.PageID) (*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/pages/%s/children", parentID), nil)
	if err != nil {
		return nil, err
	}

	var result models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Blocks

// GetBlocks loads a page's blocks ordered by position.
func (c *Client) GetBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/pages/%s/blocks", pageID), nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Block
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// PutBlocks replaces the page's persisted block list with blocks, in order.
// Blocks absent from the list are deleted server-side.
func (c *Client) PutBlocks(ctx context.Context, pageID models.PageID, blocks []*models.Block) ([]*models.Block, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/pages/%s/blocks", pageID), blocks)
	if err != nil {
		return nil, err
	}

	var result []*models.Block
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// FlushBlocks persists any pending debounced writes for the page.
func (c *Client) FlushBlocks(ctx context.Context, pageID models.PageID) error {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/pages/%s/blocks/flush", pageID), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// Sharing

type inviteRequest struct {
	Email      string            `json:"email"`
	Permission models.Permission `json:"permission"`
}

type revokeRequest struct {
	Email string `json:"email"`
}

// ListShares lists the grants on a page. Owner only.
func (c *Client) ListShares(ctx context.Context, pageID models.PageID) ([]*models.Share, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/pages/%s/shares", pageID), nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Share
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Invite grants the user behind email access to the page at the given level.
// Inviting an already-invited user changes their permission.
func (c *Client) Invite(ctx context.Context, pageID models.PageID, email string, permission models.Permission) (*models.Share, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/pages/%s/shares", pageID), inviteRequest{
		Email:      email,
		Permission: permission,
	})
	if err != nil {
		return nil, err
	}

	var result models.Share
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Revoke removes the grant for email on the page.
func (c *Client) Revoke(ctx context.Context, pageID models.PageID, email string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/pages/%s/shares", pageID), revokeRequest{Email: email})
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ListShared lists the pages other users have shared with the caller.
func (c *Client) ListShared(ctx context.Context) ([]*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/shared", nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Trash

// TrashPage is one batch of the trash listing. NextCursor feeds the next
// ListTrash call while HasMore reports whether another batch may exist.
type TrashPage struct {
	Pages      []*models.Page `json:"pages"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// ListTrash returns one batch of the caller's trashed pages. Pass a zero
// limit for the server default and an empty cursor for the first batch.
func (c *Client) ListTrash(ctx context.Context, limit int, cursor string) (*TrashPage, error) {
	path := "/api/trash"
	sep := "?"
	if limit > 0 {
		path += fmt.Sprintf("%slimit=%d", sep, limit)
		sep = "&"
	}
	if cursor != "" {
		path += sep + "cursor=" + cursor
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result TrashPage
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// RestorePage moves a trashed page back into the tree.
func (c *Client) RestorePage(ctx context.Context, id models.PageID) error {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/trash/%s/restore", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// PurgePage permanently deletes a trashed page, its blocks and its grants.
// There is no undo.
func (c *Client) PurgePage(ctx context.Context, id models.PageID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/trash/%s?confirm=true", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}
