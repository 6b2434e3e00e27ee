// Package notextesting provides testing utilities for the notex application.
//
// [VirtualUser] is a stateful simulated user that drives the API through
// [github.com/imkrishn/notex/pkg/client.Client]: authentication, page tree
// edits, block editing, sharing and the trash lifecycle. Behavior is
// deterministic per user index, so scenarios replay exactly, and multiple
// virtual users can run concurrently for load-style end-to-end tests.
package notextesting

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/imkrishn/notex/pkg/client"
	"github.com/imkrishn/notex/pkg/models"
)

// VirtualUser simulates one user session against a running server. Each
// instance tracks the entities it created so scenarios can verify and clean
// up after themselves.
type VirtualUser struct {
	Index  int // virtual user index (0, 1, 2...), not the database user ID
	Name   string
	Email  string
	Client *client.Client
	RNG    *rand.Rand // seeded with Index for reproducible scenarios

	// Session state.
	User *models.User

	// Entities created by this user.
	Roots  []*models.Page
	Blocks map[models.PageID][]*models.Block

	// Pages this user moved to the trash.
	TrashedPages []models.PageID

	mu sync.RWMutex
}

// NewVirtualUser creates a virtual user talking to the server at baseURL.
// The email embeds a timestamp so repeated test runs never collide.
func NewVirtualUser(index int, baseURL string) *VirtualUser {
	return &VirtualUser{
		Index:  index,
		Name:   fmt.Sprintf("Virtual User %d", index),
		Email:  fmt.Sprintf("user%d-%d@test.com", index, time.Now().UnixNano()),
		Client: client.NewClient(baseURL),
		RNG:    rand.New(rand.NewSource(int64(index))),
		Blocks: make(map[models.PageID][]*models.Block),
	}
}

// SignUp creates an account for this virtual user.
func (vu *VirtualUser) SignUp(ctx context.Context) error {
	authResp, err := vu.Client.SignUp(ctx, vu.Email, vu.Name)
	if err != nil {
		return fmt.Errorf("virtual user %d signup failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.User = authResp.User
	vu.mu.Unlock()
	return nil
}

// SignIn starts a fresh session for an already registered virtual user.
func (vu *VirtualUser) SignIn(ctx context.Context) error {
	authResp, err := vu.Client.SignIn(ctx, vu.Email)
	if err != nil {
		return fmt.Errorf("virtual user %d signin failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.User = authResp.User
	vu.mu.Unlock()
	return nil
}

// SignOut ends the current session.
func (vu *VirtualUser) SignOut(ctx context.Context) error {
	if err := vu.Client.SignOut(ctx); err != nil {
		return fmt.Errorf("virtual user %d signout failed: %w", vu.Index, err)
	}
	return nil
}

// CreateRootPage creates a top-level page and renames it to title.
func (vu *VirtualUser) CreateRootPage(ctx context.Context, title string) (*models.Page, error) {
	page, err := vu.Client.CreateRootPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual user %d create page failed: %w", vu.Index, err)
	}
	if title != "" {
		if page, err = vu.Client.RenamePage(ctx, page.ID, title); err != nil {
			return nil, fmt.Errorf("virtual user %d rename page failed: %w", vu.Index, err)
		}
	}

	vu.mu.Lock()
	vu.Roots = append(vu.Roots, page)
	vu.mu.Unlock()
	return page, nil
}

// CreateChildPage creates a page under parentID.
func (vu *VirtualUser) CreateChildPage(ctx context.Context, parentID models.PageID, title string) (*models.Page, error) {
	page, err := vu.Client.CreateChildPage(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("virtual user %d create child failed: %w", vu.Index, err)
	}
	if title != "" {
		if page, err = vu.Client.RenamePage(ctx, page.ID, title); err != nil {
			return nil, fmt.Errorf("virtual user %d rename child failed: %w", vu.Index, err)
		}
	}
	return page, nil
}

// WriteBlocks replaces the page's content with count generated text blocks
// and records the result for verification.
func (vu *VirtualUser) WriteBlocks(ctx context.Context, pageID models.PageID, count int) ([]*models.Block, error) {
	blocks := make([]*models.Block, 0, count)
	for i := 0; i < count; i++ {
		blocks = append(blocks, &models.Block{
			ID:     models.NewBlockID(),
			PageID: pageID,
			Content: models.JSONMap{
				"type": "text",
				"text": fmt.Sprintf("paragraph %d from user %d", i, vu.Index),
			},
		})
	}

	saved, err := vu.Client.PutBlocks(ctx, pageID, blocks)
	if err != nil {
		return nil, fmt.Errorf("virtual user %d write blocks failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.Blocks[pageID] = saved
	vu.mu.Unlock()
	return saved, nil
}

// ShuffleBlocks reorders the page's blocks with the user's deterministic RNG
// and saves the new order.
func (vu *VirtualUser) ShuffleBlocks(ctx context.Context, pageID models.PageID) error {
	blocks, err := vu.Client.GetBlocks(ctx, pageID)
	if err != nil {
		return fmt.Errorf("virtual user %d load blocks failed: %w", vu.Index, err)
	}
	vu.RNG.Shuffle(len(blocks), func(i, j int) {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	})

	saved, err := vu.Client.PutBlocks(ctx, pageID, blocks)
	if err != nil {
		return fmt.Errorf("virtual user %d reorder blocks failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.Blocks[pageID] = saved
	vu.mu.Unlock()
	return nil
}

// ShareWith grants another virtual user access to pageID.
func (vu *VirtualUser) ShareWith(ctx context.Context, pageID models.PageID, other *VirtualUser, permission models.Permission) error {
	if _, err := vu.Client.Invite(ctx, pageID, other.Email, permission); err != nil {
		return fmt.Errorf("virtual user %d invite failed: %w", vu.Index, err)
	}
	return nil
}

// TrashPage moves a page to the trash and records it for verification.
func (vu *VirtualUser) TrashPage(ctx context.Context, pageID models.PageID) error {
	if err := vu.Client.DeletePage(ctx, pageID); err != nil {
		return fmt.Errorf("virtual user %d trash page failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.TrashedPages = append(vu.TrashedPages, pageID)
	vu.mu.Unlock()
	return nil
}

// VerifyBlocks checks that the server's block list for pageID matches the
// last state this user saved, in both membership and order.
func (vu *VirtualUser) VerifyBlocks(ctx context.Context, pageID models.PageID) error {
	vu.mu.RLock()
	want := vu.Blocks[pageID]
	vu.mu.RUnlock()

	got, err := vu.Client.GetBlocks(ctx, pageID)
	if err != nil {
		return fmt.Errorf("virtual user %d load blocks failed: %w", vu.Index, err)
	}
	if len(got) != len(want) {
		return fmt.Errorf("virtual user %d: page %s has %d blocks, want %d", vu.Index, pageID, len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			return fmt.Errorf("virtual user %d: page %s block %d is %s, want %s", vu.Index, pageID, i, got[i].ID, want[i].ID)
		}
	}
	return nil
}

// RunScenario performs a full user journey: sign up, build a small tree,
// edit blocks, reorder them, trash a page and verify the trash listing.
func (vu *VirtualUser) RunScenario(ctx context.Context) error {
	if err := vu.SignUp(ctx); err != nil {
		return err
	}

	root, err := vu.CreateRootPage(ctx, fmt.Sprintf("Notebook %d", vu.Index))
	if err != nil {
		return err
	}
	child, err := vu.CreateChildPage(ctx, root.ID, "Ideas")
	if err != nil {
		return err
	}

	if _, err := vu.WriteBlocks(ctx, child.ID, 3+vu.RNG.Intn(5)); err != nil {
		return err
	}
	if err := vu.ShuffleBlocks(ctx, child.ID); err != nil {
		return err
	}
	if err := vu.VerifyBlocks(ctx, child.ID); err != nil {
		return err
	}

	scratch, err := vu.CreateRootPage(ctx, "Scratch")
	if err != nil {
		return err
	}
	if err := vu.TrashPage(ctx, scratch.ID); err != nil {
		return err
	}

	trash, err := vu.Client.ListTrash(ctx, 0, "")
	if err != nil {
		return fmt.Errorf("virtual user %d list trash failed: %w", vu.Index, err)
	}
	found := false
	for _, p := range trash.Pages {
		if p.ID == scratch.ID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("virtual user %d: trashed page %s missing from trash listing", vu.Index, scratch.ID)
	}

	return vu.SignOut(ctx)
}
