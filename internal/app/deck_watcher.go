package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	mcpserver "slides/internal/mcp"
	"slides/internal/service"
	"slides/internal/storage"
)

// Events raised by the deck watcher.
const (
	EventLibraryChanged = "decks:changed"
	EventDeckReloaded   = "deck:reloaded"
)

const watchInterval = 2 * time.Second

// deckWatcher polls storage for changes made by another process (the
// standalone MCP server) and tells the frontend: the deck list, the open
// deck's contents, and pending MCP approvals.
type deckWatcher struct {
	ctx     context.Context
	svc     *Services
	emitter service.EventEmitter
	logger  *zap.Logger

	mu          sync.Mutex
	lastLibrary string // deck count + max updated_at
	emitted     map[string]bool
	stopCh      chan struct{}
	done        chan struct{}
}

func newDeckWatcher(ctx context.Context, svc *Services, emitter service.EventEmitter, logger *zap.Logger) *deckWatcher {
	return &deckWatcher{
		ctx:     ctx,
		svc:     svc,
		emitter: emitter,
		logger:  logger,
		emitted: map[string]bool{},
	}
}

// Start begins the polling loop. Should be called once on app startup.
func (w *deckWatcher) Start() {
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.pollLoop()
}

// Stop terminates the polling loop and waits for it.
func (w *deckWatcher) Stop() {
	if w.stopCh == nil {
		return
	}
	close(w.stopCh)
	<-w.done
	w.stopCh = nil
}

func (w *deckWatcher) pollLoop() {
	defer close(w.done)
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *deckWatcher) check() {
	w.checkLibrary()
	w.checkOpenDeck()
	w.checkApprovals()
}

func (w *deckWatcher) checkLibrary() {
	decks, err := w.svc.Decks.ListDecks()
	if err != nil {
		w.logger.Debug("watch: list decks", zap.Error(err))
		return
	}
	var latest time.Time
	for _, d := range decks {
		if d.UpdatedAt.After(latest) {
			latest = d.UpdatedAt
		}
	}
	fingerprint := fmt.Sprintf("%d:%d", len(decks), latest.UnixNano())

	w.mu.Lock()
	changed := w.lastLibrary != "" && w.lastLibrary != fingerprint
	w.lastLibrary = fingerprint
	w.mu.Unlock()

	if changed {
		w.emitter.Emit(w.ctx, EventLibraryChanged, map[string]int{"count": len(decks)})
	}
}

func (w *deckWatcher) checkOpenDeck() {
	reloaded, err := w.svc.Decks.ReloadIfChanged(w.ctx)
	if err != nil {
		w.logger.Debug("watch: reload deck", zap.Error(err))
		return
	}
	if reloaded {
		w.emitter.Emit(w.ctx, EventDeckReloaded, map[string]string{"deckId": w.svc.Decks.OpenDeckID()})
	}
}

// checkApprovals raises each pending approval once and dismisses those
// the MCP process withdrew (timeout, disconnect).
func (w *deckWatcher) checkApprovals() {
	pending, err := w.svc.Approvals.ListPending()
	if err != nil {
		w.logger.Debug("watch: list approvals", zap.Error(err))
		return
	}

	live := make(map[string]bool, len(pending))
	var raise []storage.Approval
	w.mu.Lock()
	for _, ap := range pending {
		live[ap.ID] = true
		if !w.emitted[ap.ID] {
			w.emitted[ap.ID] = true
			raise = append(raise, ap)
		}
	}
	var gone []string
	for id := range w.emitted {
		if !live[id] {
			delete(w.emitted, id)
			gone = append(gone, id)
		}
	}
	w.mu.Unlock()

	for _, ap := range raise {
		w.emitter.Emit(w.ctx, mcpserver.EventApprovalRequired, mcpserver.PendingAction{
			ID:          ap.ID,
			Tool:        ap.Tool,
			Description: ap.Description,
			CreatedAt:   ap.CreatedAt.Format(time.RFC3339),
			Metadata:    ap.Metadata,
		})
	}
	for _, id := range gone {
		w.emitter.Emit(w.ctx, mcpserver.EventApprovalDismissed, map[string]string{"id": id})
	}
}

// forgetApproval drops an approval the user resolved so it is not
// reported as withdrawn.
func (w *deckWatcher) forgetApproval(id string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	delete(w.emitted, id)
	w.mu.Unlock()
}
