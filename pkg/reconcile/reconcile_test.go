package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/store"
	"github.com/imkrishn/notex/pkg/store/memory"
)

func newEngine(t *testing.T, window time.Duration) (*Engine, *memory.MemoryStore) {
	t.Helper()
	st := memory.NewMemoryStore()
	e := NewEngine(st, zerolog.Nop(), window)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, st
}

func makeBlocks(pageID models.PageID, texts ...string) []*models.Block {
	blocks := make([]*models.Block, 0, len(texts))
	for _, text := range texts {
		blocks = append(blocks, &models.Block{
			ID:      models.NewBlockID(),
			PageID:  pageID,
			Content: models.JSONMap{"text": text},
		})
	}
	return blocks
}

func TestReconcileCreatesAndOrders(t *testing.T) {
	e, _ := newEngine(t, 0)
	ctx := context.Background()
	pageID := models.NewPageID()

	blocks := makeBlocks(pageID, "a", "b", "c")
	require.NoError(t, e.Reconcile(ctx, pageID, blocks))

	persisted, err := e.Load(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, persisted, 3)
	for i, b := range persisted {
		assert.Equal(t, blocks[i].ID, b.ID)
		assert.Equal(t, i, b.Position)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	e, _ := newEngine(t, 0)
	ctx := context.Background()
	pageID := models.NewPageID()

	blocks := makeBlocks(pageID, "a", "b")
	require.NoError(t, e.Reconcile(ctx, pageID, blocks))
	require.NoError(t, e.Reconcile(ctx, pageID, blocks))

	persisted, err := e.Load(ctx, pageID)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestReconcileDeletesOrphansAndReorders(t *testing.T) {
	e, _ := newEngine(t, 0)
	ctx := context.Background()
	pageID := models.NewPageID()

	blocks := makeBlocks(pageID, "a", "b", "c")
	require.NoError(t, e.Reconcile(ctx, pageID, blocks))

	// Drop the middle block and swap the remaining two.
	next := []*models.Block{blocks[2], blocks[0]}
	require.NoError(t, e.Reconcile(ctx, pageID, next))

	persisted, err := e.Load(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, blocks[2].ID, persisted[0].ID)
	assert.Equal(t, blocks[0].ID, persisted[1].ID)
}

func TestDebounceCoalescesToLastState(t *testing.T) {
	e, _ := newEngine(t, 40*time.Millisecond)
	ctx := context.Background()
	pageID := models.NewPageID()
	e.SetActivePage(pageID)

	// Three rapid edits inside the window; only the last survives.
	e.OnDocumentChange(pageID, makeBlocks(pageID, "draft 1"))
	e.OnDocumentChange(pageID, makeBlocks(pageID, "draft 2"))
	final := makeBlocks(pageID, "final", "state")
	e.OnDocumentChange(pageID, final)

	require.Eventually(t, func() bool {
		persisted, err := e.Load(ctx, pageID)
		return err == nil && len(persisted) == 2
	}, time.Second, 10*time.Millisecond)

	persisted, err := e.Load(ctx, pageID)
	require.NoError(t, err)
	assert.Equal(t, final[0].ID, persisted[0].ID)
	assert.Equal(t, final[1].ID, persisted[1].ID)
}

func TestPageSwitchDropsPendingWrite(t *testing.T) {
	e, _ := newEngine(t, 40*time.Millisecond)
	ctx := context.Background()
	pageA := models.NewPageID()
	pageB := models.NewPageID()

	e.SetActivePage(pageA)
	e.OnDocumentChange(pageA, makeBlocks(pageA, "doomed"))
	e.SetActivePage(pageB)

	time.Sleep(100 * time.Millisecond)
	persisted, err := e.Load(ctx, pageA)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestFlushPersistsPendingState(t *testing.T) {
	e, _ := newEngine(t, time.Hour)
	ctx := context.Background()
	pageID := models.NewPageID()
	e.SetActivePage(pageID)

	e.OnDocumentChange(pageID, makeBlocks(pageID, "unsaved"))
	require.NoError(t, e.Flush(ctx))

	persisted, err := e.Load(ctx, pageID)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	e, _ := newEngine(t, time.Hour)
	assert.NoError(t, e.Flush(context.Background()))
}

func TestCloseIgnoresLaterChanges(t *testing.T) {
	e, _ := newEngine(t, time.Hour)
	ctx := context.Background()
	pageID := models.NewPageID()

	require.NoError(t, e.Close(ctx))
	e.OnDocumentChange(pageID, makeBlocks(pageID, "after close"))
	require.NoError(t, e.Flush(ctx))

	persisted, err := e.Load(ctx, pageID)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

// flakyStore fails every write to a chosen block ID.
type flakyStore struct {
	store.Store
	failID models.BlockID
}

var errInjected = errors.New("injected write failure")

func (f *flakyStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	if block.ID == f.failID {
		return errInjected
	}
	return f.Store.UpdateBlock(ctx, block)
}

func (f *flakyStore) CreateBlock(ctx context.Context, block *models.Block) error {
	if block.ID == f.failID {
		return errInjected
	}
	return f.Store.CreateBlock(ctx, block)
}

func TestReconcileContinuesPastFailedWrites(t *testing.T) {
	pageID := models.NewPageID()
	blocks := makeBlocks(pageID, "ok", "broken", "also ok")

	st := &flakyStore{Store: memory.NewMemoryStore(), failID: blocks[1].ID}
	e := NewEngine(st, zerolog.Nop(), 0)
	ctx := context.Background()

	err := e.Reconcile(ctx, pageID, blocks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 failed writes")

	// The healthy blocks landed despite the failure in the middle.
	persisted, err := e.Load(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, blocks[0].ID, persisted[0].ID)
	assert.Equal(t, blocks[2].ID, persisted[1].ID)
}

// blockingStore parks ListBlocks until released, to hold a reconcile in
// flight.
type blockingStore struct {
	store.Store
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (b *blockingStore) ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.Store.ListBlocks(ctx, pageID)
}

func TestOverlappingReconcileIsDropped(t *testing.T) {
	pageID := models.NewPageID()
	st := &blockingStore{
		Store:   memory.NewMemoryStore(),
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	e := NewEngine(st, zerolog.Nop(), 0)
	ctx := context.Background()

	first := makeBlocks(pageID, "first")
	done := make(chan error, 1)
	go func() { done <- e.Reconcile(ctx, pageID, first) }()
	<-st.entered

	// While the first pass is parked, a second call for the same page must
	// return immediately without writing.
	require.NoError(t, e.Reconcile(ctx, pageID, makeBlocks(pageID, "overlap")))
	persisted, err := st.Store.ListBlocks(ctx, pageID)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	close(st.release)
	require.NoError(t, <-done)

	persisted, err = e.Load(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, first[0].ID, persisted[0].ID)
}
