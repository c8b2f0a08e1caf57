package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"slides/internal/deck"
	"slides/internal/domain"
	"slides/internal/export"
	"slides/internal/storage"
	"slides/internal/watch"
)

// ErrNoDeckOpen is returned by edit operations when no deck is loaded.
var ErrNoDeckOpen = errors.New("no deck open")

// ─────────────────────────────────────────────────────────────
// Deck Service — the open deck, its library and its history
// ─────────────────────────────────────────────────────────────

// DeckService owns the deck being edited. Every edit goes through the
// deck.Store it holds; each change is pushed to the frontend as a
// deck:changed event carrying the full DeckState.
type DeckService struct {
	repo      domain.DeckRepository
	revisions *storage.RevisionStore
	emitter   EventEmitter
	logger    *zap.Logger
	raster    *export.Rasterizer

	mu          sync.Mutex
	deck        *domain.Deck
	store       *deck.Store
	unsubscribe func()
	linker      *watch.ImageLinker
	saved       uint64    // store version at the last save
	synced      time.Time // repo updated_at we last wrote or read
}

func NewDeckService(
	repo domain.DeckRepository,
	revisions *storage.RevisionStore,
	emitter EventEmitter,
	logger *zap.Logger,
) *DeckService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeckService{
		repo:      repo,
		revisions: revisions,
		emitter:   emitter,
		logger:    logger,
		raster:    export.NewRasterizer(logger),
	}
}

// ── Library ────────────────────────────────────────────────

// CreateDeck stores a new deck with a single empty slide.
func (s *DeckService) CreateDeck(name string) (*domain.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled deck"
	}
	d := &domain.Deck{ID: uuid.New().String(), Name: name}
	if err := s.repo.CreateDeck(d); err != nil {
		return nil, fmt.Errorf("create deck: %w", err)
	}
	seed := []domain.Slide{{ID: 1, Elements: []domain.Element{}}}
	if err := s.repo.ReplaceSlides(d.ID, seed); err != nil {
		return nil, fmt.Errorf("seed deck: %w", err)
	}
	d.SlideCount = 1
	return d, nil
}

func (s *DeckService) ListDecks() ([]domain.Deck, error) {
	return s.repo.ListDecks()
}

func (s *DeckService) RenameDeck(ctx context.Context, id, name string) error {
	d, err := s.repo.GetDeck(id)
	if err != nil {
		return err
	}
	d.Name = strings.TrimSpace(name)
	if d.Name == "" {
		return fmt.Errorf("deck name is required")
	}
	if err := s.repo.UpdateDeck(d); err != nil {
		return fmt.Errorf("rename deck: %w", err)
	}

	s.mu.Lock()
	open := s.deck != nil && s.deck.ID == id
	if open {
		s.deck.Name = d.Name
	}
	s.mu.Unlock()
	if open {
		s.markSynced(id)
		s.emitState(ctx)
	}
	return nil
}

// DeleteDeck removes a deck. Deleting the open deck closes it first.
func (s *DeckService) DeleteDeck(id string) error {
	s.mu.Lock()
	release := func() {}
	if s.deck != nil && s.deck.ID == id {
		release = s.detachLocked()
	}
	s.mu.Unlock()
	release()
	if err := s.repo.DeleteDeck(id); err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	return nil
}

// OpenDeck loads a deck into a fresh store, replacing any open deck.
// Linked image files are watched again.
func (s *DeckService) OpenDeck(ctx context.Context, id string) (*domain.DeckState, error) {
	d, err := s.repo.GetDeck(id)
	if err != nil {
		return nil, fmt.Errorf("open deck: %w", err)
	}
	slides, err := s.repo.LoadSlides(id)
	if err != nil {
		return nil, fmt.Errorf("open deck: %w", err)
	}

	store := deck.New(slides)
	linker, err := watch.NewImageLinker(func(link watch.Link, dataURL string) {
		store.PatchSlideElement(link.SlideID, link.ElementID, domain.ElementPatch{Content: &dataURL})
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("open deck: %w", err)
	}
	if failed := linker.Sync(store.Snapshot().Slides); failed > 0 {
		s.logger.Warn("some linked images are not watched", zap.String("deck", d.ID), zap.Int("failed", failed))
	}

	s.mu.Lock()
	release := s.detachLocked()
	d.SlideCount = len(store.Snapshot().Slides)
	s.deck = d
	s.store = store
	s.linker = linker
	s.saved = store.Version()
	s.synced = d.UpdatedAt
	s.unsubscribe = store.Subscribe(func(deck.State) {
		// Undo, revision restores and slide deletes move links too.
		linker.Sync(store.Snapshot().Slides)
		s.emitState(ctx)
	})
	s.mu.Unlock()
	release()

	s.logger.Info("deck opened", zap.String("deck", d.ID), zap.Int("slides", d.SlideCount))
	st := s.state()
	s.emitter.Emit(ctx, EventDeckChanged, st)
	return st, nil
}

// CloseDeck drops the open deck without saving.
func (s *DeckService) CloseDeck() {
	s.mu.Lock()
	release := s.detachLocked()
	s.mu.Unlock()
	release()
}

// detachLocked forgets the open deck. The returned func stops its image
// linker and must run after s.mu is released.
func (s *DeckService) detachLocked() (release func()) {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	linker := s.linker
	s.linker = nil
	s.deck = nil
	s.store = nil
	return func() {
		if linker == nil {
			return
		}
		if err := linker.Close(); err != nil {
			s.logger.Warn("close image linker", zap.Error(err))
		}
	}
}

// ── State ──────────────────────────────────────────────────

// Current returns the open deck's store.
func (s *DeckService) Current() (*deck.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, ErrNoDeckOpen
	}
	return s.store, nil
}

// OpenDeckID returns the id of the open deck, or "".
func (s *DeckService) OpenDeckID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deck == nil {
		return ""
	}
	return s.deck.ID
}

// State returns the open deck as the frontend sees it.
func (s *DeckService) State() (*domain.DeckState, error) {
	st := s.state()
	if st == nil {
		return nil, ErrNoDeckOpen
	}
	return st, nil
}

func (s *DeckService) state() *domain.DeckState {
	s.mu.Lock()
	d, store := s.deck, s.store
	s.mu.Unlock()
	if store == nil {
		return nil
	}
	snap := store.Snapshot()
	meta := *d
	meta.SlideCount = len(snap.Slides)
	return &domain.DeckState{
		Deck:              meta,
		Slides:            snap.Slides,
		CurrentSlideID:    snap.CurrentSlideID,
		SelectedElementID: snap.SelectedElementID,
		CanUndo:           store.CanUndo(),
		CanRedo:           store.CanRedo(),
	}
}

func (s *DeckService) emitState(ctx context.Context) {
	if st := s.state(); st != nil {
		s.emitter.Emit(ctx, EventDeckChanged, st)
	}
}

// Document returns a read-only export input for the open deck.
func (s *DeckService) Document() (export.Document, error) {
	st, err := s.State()
	if err != nil {
		return export.Document{}, err
	}
	return export.Document{Title: st.Deck.Name, Slides: st.Slides}, nil
}

// LoadDocument returns the export input for a deck: the live state when it
// is the open deck, the saved slides otherwise.
func (s *DeckService) LoadDocument(id string) (export.Document, error) {
	if id == s.OpenDeckID() {
		return s.Document()
	}
	d, err := s.repo.GetDeck(id)
	if err != nil {
		return export.Document{}, err
	}
	slides, err := s.repo.LoadSlides(id)
	if err != nil {
		return export.Document{}, err
	}
	return export.Document{Title: d.Name, Slides: slides}, nil
}

// ── Persistence ────────────────────────────────────────────

// SaveDeck writes the open deck and records a revision under label.
func (s *DeckService) SaveDeck(ctx context.Context, label string) error {
	if strings.TrimSpace(label) == "" {
		label = "Saved"
	}
	return s.save(ctx, label)
}

// SaveIfDirty writes the open deck when it changed since the last save.
// It records no revision. Used by autosave.
func (s *DeckService) SaveIfDirty(ctx context.Context) (bool, error) {
	s.mu.Lock()
	dirty := s.store != nil && s.store.Version() != s.saved
	s.mu.Unlock()
	if !dirty {
		return false, nil
	}
	return true, s.save(ctx, "")
}

// Dirty reports whether the open deck has unsaved changes.
func (s *DeckService) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil && s.store.Version() != s.saved
}

func (s *DeckService) save(ctx context.Context, label string) error {
	s.mu.Lock()
	d, store := s.deck, s.store
	s.mu.Unlock()
	if store == nil {
		return ErrNoDeckOpen
	}

	version := store.Version()
	slides := store.Snapshot().Slides
	if err := s.repo.ReplaceSlides(d.ID, slides); err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	if label != "" && s.revisions != nil {
		if _, err := s.revisions.Create(d.ID, label, slides); err != nil {
			return fmt.Errorf("save revision: %w", err)
		}
	}

	s.mu.Lock()
	if s.store == store && version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()
	s.markSynced(d.ID)

	s.logger.Debug("deck saved", zap.String("deck", d.ID), zap.Uint64("version", version))
	s.emitter.Emit(ctx, EventDeckSaved, map[string]any{"deckId": d.ID, "label": label})
	return nil
}

// markSynced records the repo's updated_at for the open deck so our own
// writes are not mistaken for external ones.
func (s *DeckService) markSynced(id string) {
	d, err := s.repo.GetDeck(id)
	if err != nil {
		return
	}
	s.mu.Lock()
	if s.deck != nil && s.deck.ID == id {
		s.synced = d.UpdatedAt
	}
	s.mu.Unlock()
}

// ReloadIfChanged reopens the open deck when another process saved it.
// Unsaved local edits win: a dirty deck is left alone.
func (s *DeckService) ReloadIfChanged(ctx context.Context) (bool, error) {
	s.mu.Lock()
	d, store, synced := s.deck, s.store, s.synced
	s.mu.Unlock()
	if store == nil {
		return false, nil
	}
	stored, err := s.repo.GetDeck(d.ID)
	if err != nil {
		return false, err
	}
	if stored.UpdatedAt.Equal(synced) {
		return false, nil
	}
	if s.Dirty() {
		s.logger.Warn("deck changed externally while dirty, keeping local edits", zap.String("deck", d.ID))
		s.markSynced(d.ID)
		return false, nil
	}
	if _, err := s.OpenDeck(ctx, d.ID); err != nil {
		return false, err
	}
	s.logger.Info("deck reloaded after external change", zap.String("deck", d.ID))
	return true, nil
}

// ── Revisions ──────────────────────────────────────────────

func (s *DeckService) ListRevisions() ([]domain.Revision, error) {
	id := s.OpenDeckID()
	if id == "" {
		return nil, ErrNoDeckOpen
	}
	return s.revisions.List(id)
}

// RestoreRevision swaps the revision's slides into the open deck as one
// undoable change.
func (s *DeckService) RestoreRevision(id string) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	rev, slides, err := s.revisions.Load(id)
	if err != nil {
		return fmt.Errorf("restore revision: %w", err)
	}
	if rev.DeckID != s.OpenDeckID() {
		return fmt.Errorf("revision %s belongs to another deck", id)
	}
	store.Replace(slides)
	return nil
}

// ── Edits ──────────────────────────────────────────────────

func (s *DeckService) AddSlide() (int, error) {
	store, err := s.Current()
	if err != nil {
		return 0, err
	}
	return store.AddSlide(), nil
}

func (s *DeckService) DeleteSlide(id int) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	store.DeleteSlide(id)
	return nil
}

func (s *DeckService) SetCurrentSlide(id int) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	// The selection belongs to the slide it was made on.
	if store.Snapshot().CurrentSlideID != id {
		store.SetSelectedElementID(domain.NoElement)
	}
	store.SetCurrentSlideID(id)
	return nil
}

// AddElement adds an element of the named kind to the current slide and
// selects it.
func (s *DeckService) AddElement(kind, content string) (domain.ElementID, error) {
	k, err := domain.ParseElementKind(kind)
	if err != nil {
		return domain.NoElement, err
	}
	store, err := s.Current()
	if err != nil {
		return domain.NoElement, err
	}
	return store.AddElement(k, content), nil
}

// AddImageFile embeds a local image file as a new image element.
func (s *DeckService) AddImageFile(path string) (domain.ElementID, error) {
	store, err := s.Current()
	if err != nil {
		return domain.NoElement, err
	}
	dataURL, err := export.FileDataURL(path)
	if err != nil {
		return domain.NoElement, err
	}
	return store.AddElement(domain.KindImage, dataURL), nil
}

func (s *DeckService) UpdateElement(id domain.ElementID, patch domain.ElementPatch) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	store.UpdateElement(id, patch)
	return nil
}

func (s *DeckService) RemoveElement(id domain.ElementID) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	store.RemoveElement(id)
	return nil
}

func (s *DeckService) SelectElement(id domain.ElementID) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	store.SetSelectedElementID(id)
	return nil
}

func (s *DeckService) SetBackground(slideID int, patch domain.BackgroundPatch) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	store.UpdateSlideBackground(slideID, patch)
	return nil
}

// SetBackgroundImageFile embeds a local file as the slide's background.
func (s *DeckService) SetBackgroundImageFile(slideID int, path string) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	dataURL, err := export.FileDataURL(path)
	if err != nil {
		return err
	}
	store.UpdateSlideBackground(slideID, domain.BackgroundPatch{Image: &dataURL})
	return nil
}

func (s *DeckService) Undo() (bool, error) {
	store, err := s.Current()
	if err != nil {
		return false, err
	}
	return store.Undo(), nil
}

func (s *DeckService) Redo() (bool, error) {
	store, err := s.Current()
	if err != nil {
		return false, err
	}
	return store.Redo(), nil
}

// ── Linked images ──────────────────────────────────────────

// LinkImageFile embeds path into an image element and keeps it in sync
// with later writes to the file.
func (s *DeckService) LinkImageFile(slideID int, elementID domain.ElementID, path string) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	sl, ok := store.Snapshot().Slide(slideID)
	if !ok {
		return fmt.Errorf("slide %d not found", slideID)
	}
	el, ok := sl.Element(elementID)
	if !ok || el.Kind != domain.KindImage {
		return fmt.Errorf("image element %d not found on slide %d", elementID, slideID)
	}

	dataURL, err := export.FileDataURL(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	linker := s.linker
	s.mu.Unlock()
	if linker == nil {
		return ErrNoDeckOpen
	}
	if err := linker.Link(slideID, elementID, path); err != nil {
		return fmt.Errorf("link image: %w", err)
	}
	store.PatchSlideElement(slideID, elementID, domain.ElementPatch{Content: &dataURL, Source: &path})
	return nil
}

// LinkedImages returns the image files the open deck is watching.
func (s *DeckService) LinkedImages() []watch.Link {
	s.mu.Lock()
	linker := s.linker
	s.mu.Unlock()
	if linker == nil {
		return nil
	}
	return linker.Links()
}

// UnlinkImage stops syncing an element with its file. The embedded image
// stays.
func (s *DeckService) UnlinkImage(slideID int, elementID domain.ElementID) error {
	store, err := s.Current()
	if err != nil {
		return err
	}
	empty := ""
	store.PatchSlideElement(slideID, elementID, domain.ElementPatch{Source: &empty})
	return nil
}

// ── Thumbnails ─────────────────────────────────────────────

// RenderThumbnail draws a slide of the open deck as a PNG data URL, with
// the selected element outlined.
func (s *DeckService) RenderThumbnail(slideID, width int) (string, error) {
	store, err := s.Current()
	if err != nil {
		return "", err
	}
	snap := store.Snapshot()
	sl, ok := snap.Slide(slideID)
	if !ok {
		return "", fmt.Errorf("slide %d not found", slideID)
	}
	return s.raster.Thumbnail(sl, width, snap.SelectedElementID)
}
