// Package reconcile keeps the durable block rows of a page converged with the
// live in-editor document, without blocking typing on network latency.
//
// The editor reports its full ordered block list on every local mutation via
// [Engine.OnDocumentChange]. Calls are debounced: only the last call within
// the quiescence window triggers a write, intermediate states are discarded,
// not queued. When the window elapses the engine diffs the persisted rows
// against the reported list, deletes orphans, and upserts every block with
// its index as position.
//
// # Guards
//
// Two guards bound concurrency. The in-flight guard admits one reconcile per
// page at a time; an overlapping call for the same page is dropped, the next
// debounce tick carries the latest state anyway. The active-page guard drops
// a pending write whose page no longer matches the page the user is on, so a
// write queued before navigation cannot land on the wrong document.
//
// # Failure semantics
//
// A single failed upsert or delete is logged and the pass continues with the
// remaining blocks; reconciliation is availability-over-consistency and never
// atomic. The aggregate error reports how many writes failed so callers can
// surface degradation.
//
// [Engine.Flush] runs any pending debounced write synchronously and must be
// called before navigation or teardown, otherwise an edit made just before
// switching pages is lost with the cancelled timer.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/store"
)

// DefaultWindow is the debounce quiescence window applied when the engine is
// constructed with a zero window.
const DefaultWindow = 700 * time.Millisecond

// pending is the newest unsaved document snapshot.
type pending struct {
	pageID models.PageID
	blocks []*models.Block
}

// Engine synchronizes in-editor block lists with their persisted rows.
type Engine struct {
	store  store.Store
	log    zerolog.Logger
	window time.Duration

	mu       sync.Mutex
	active   models.PageID
	pend     *pending
	timer    *time.Timer
	inflight map[models.PageID]bool
	closed   bool
}

// NewEngine creates an engine over st. A zero window selects DefaultWindow.
func NewEngine(st store.Store, logger zerolog.Logger, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		store:    st,
		log:      logger.With().Str("component", "reconcile").Logger(),
		window:   window,
		inflight: make(map[models.PageID]bool),
	}
}

// Load fetches the page's blocks ordered by position. Errors are returned to
// the caller so an empty page and a failed load stay distinguishable; callers
// decide whether to render blank or retry.
func (e *Engine) Load(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	blocks, err := e.store.ListBlocks(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks for page %s: %w", pageID, err)
	}
	return blocks, nil
}

// SetActivePage records the page the user is editing. Switching pages cancels
// any pending write for the previous page; callers that must not lose that
// state call Flush first.
func (e *Engine) SetActivePage(pageID models.PageID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == pageID {
		return
	}
	e.active = pageID
	if e.pend != nil && e.pend.pageID != pageID {
		e.stopTimerLocked()
		e.log.Debug().Str("page_id", e.pend.pageID.String()).Msg("pending write cancelled on page switch")
		e.pend = nil
	}
}

// OnDocumentChange registers the editor's current block list for pageID.
// Every call resets the debounce timer; only the state of the last call
// within the window is persisted.
func (e *Engine) OnDocumentChange(pageID models.PageID, blocks []*models.Block) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	snapshot := make([]*models.Block, len(blocks))
	copy(snapshot, blocks)
	e.pend = &pending{pageID: pageID, blocks: snapshot}

	e.stopTimerLocked()
	e.timer = time.AfterFunc(e.window, e.onTimer)
}

func (e *Engine) onTimer() {
	e.mu.Lock()
	p := e.pend
	e.pend = nil
	e.timer = nil
	active := e.active
	e.mu.Unlock()

	if p == nil {
		return
	}
	if !active.IsZero() && p.pageID != active {
		e.log.Debug().Str("page_id", p.pageID.String()).Msg("stale debounce tick dropped")
		return
	}

	if err := e.Reconcile(context.Background(), p.pageID, p.blocks); err != nil {
		e.log.Warn().Err(err).Str("page_id", p.pageID.String()).Msg("reconcile finished with failures")
	}
}

// Flush synchronously persists any pending debounced state. It must be
// called before navigation or teardown paths that would otherwise discard
// the timer.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	e.stopTimerLocked()
	p := e.pend
	e.pend = nil
	e.mu.Unlock()

	if p == nil {
		return nil
	}
	return e.Reconcile(ctx, p.pageID, p.blocks)
}

// Close flushes pending state and stops the engine. Further document change
// notifications are ignored.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return e.Flush(ctx)
}

// Reconcile converges the persisted rows of pageID with blocks: rows absent
// from blocks are deleted, every entry in blocks is upserted with its index
// as position. At most one reconcile runs per page; an overlapping call for
// the same page returns immediately without writing.
func (e *Engine) Reconcile(ctx context.Context, pageID models.PageID, blocks []*models.Block) error {
	e.mu.Lock()
	if e.inflight[pageID] {
		e.mu.Unlock()
		e.log.Debug().Str("page_id", pageID.String()).Msg("reconcile already in flight, dropped")
		return nil
	}
	e.inflight[pageID] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, pageID)
		e.mu.Unlock()
	}()

	persisted, err := e.store.ListBlocks(ctx, pageID)
	if err != nil {
		return fmt.Errorf("failed to list persisted blocks: %w", err)
	}

	current := make(map[models.BlockID]bool, len(blocks))
	for _, b := range blocks {
		current[b.ID] = true
	}

	failed := 0

	// Rows only in storage belong to blocks removed or merged in the editor.
	for _, row := range persisted {
		if current[row.ID] {
			continue
		}
		if err := e.store.DeleteBlock(ctx, row.ID); err != nil {
			failed++
			e.log.Warn().Err(err).
				Str("page_id", pageID.String()).
				Str("block_id", row.ID.String()).
				Msg("failed to delete orphaned block")
		}
	}

	// Upsert every current block: update by ID, create on not-found. One code
	// path covers edited blocks and newly typed ones.
	for i, b := range blocks {
		b.PageID = pageID
		b.Position = i
		if err := e.store.UpdateBlock(ctx, b); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = e.store.CreateBlock(ctx, b)
			}
			if err != nil {
				failed++
				e.log.Warn().Err(err).
					Str("page_id", pageID.String()).
					Str("block_id", b.ID.String()).
					Msg("failed to upsert block")
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("reconcile of page %s completed with %d failed writes", pageID, failed)
	}
	return nil
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
