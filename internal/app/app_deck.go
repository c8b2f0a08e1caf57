package app

import (
	"slides/internal/domain"
)

// ============================================================
// Library
// ============================================================

func (a *App) ListDecks() ([]domain.Deck, error) {
	return a.svc.Decks.ListDecks()
}

// CreateDeck stores a new deck and opens it.
func (a *App) CreateDeck(name string) (*domain.DeckState, error) {
	if _, err := a.svc.Decks.SaveIfDirty(a.ctx); err != nil {
		return nil, err
	}
	d, err := a.svc.Decks.CreateDeck(name)
	if err != nil {
		return nil, err
	}
	return a.openDeck(d.ID)
}

// OpenDeck saves pending edits of the current deck and switches to id.
func (a *App) OpenDeck(id string) (*domain.DeckState, error) {
	if _, err := a.svc.Decks.SaveIfDirty(a.ctx); err != nil {
		return nil, err
	}
	return a.openDeck(id)
}

func (a *App) openDeck(id string) (*domain.DeckState, error) {
	st, err := a.svc.Decks.OpenDeck(a.ctx, id)
	if err != nil {
		return nil, err
	}
	a.svc.Settings.SetLastDeckID(id)
	return st, nil
}

func (a *App) RenameDeck(id, name string) error {
	return a.svc.Decks.RenameDeck(a.ctx, id, name)
}

func (a *App) DeleteDeck(id string) error {
	if id == a.svc.Settings.LastDeckID() {
		a.svc.Settings.SetLastDeckID("")
	}
	return a.svc.Decks.DeleteDeck(id)
}

// GetDeckState returns the open deck, or an error when none is open.
func (a *App) GetDeckState() (*domain.DeckState, error) {
	return a.svc.Decks.State()
}

// ============================================================
// Persistence and revisions
// ============================================================

func (a *App) SaveDeck(label string) error {
	return a.svc.Decks.SaveDeck(a.ctx, label)
}

func (a *App) HasUnsavedChanges() bool {
	return a.svc.Decks.Dirty()
}

func (a *App) ListRevisions() ([]domain.Revision, error) {
	return a.svc.Decks.ListRevisions()
}

func (a *App) RestoreRevision(id string) error {
	return a.svc.Decks.RestoreRevision(id)
}

// ============================================================
// Slides
// ============================================================

func (a *App) AddSlide() (int, error) {
	return a.svc.Decks.AddSlide()
}

func (a *App) DeleteSlide(id int) error {
	return a.svc.Decks.DeleteSlide(id)
}

func (a *App) SetCurrentSlide(id int) error {
	return a.svc.Decks.SetCurrentSlide(id)
}

func (a *App) SetSlideBackground(slideID int, patch domain.BackgroundPatch) error {
	return a.svc.Decks.SetBackground(slideID, patch)
}

// RenderThumbnail returns a PNG data URL of the slide for the sidebar.
func (a *App) RenderThumbnail(slideID, width int) (string, error) {
	return a.svc.Decks.RenderThumbnail(slideID, width)
}

// ============================================================
// Elements
// ============================================================

// AddElement adds a text or image element to the current slide and
// selects it.
func (a *App) AddElement(kind, content string) (int64, error) {
	id, err := a.svc.Decks.AddElement(kind, content)
	return int64(id), err
}

func (a *App) UpdateElement(id int64, patch domain.ElementPatch) error {
	return a.svc.Decks.UpdateElement(domain.ElementID(id), patch)
}

func (a *App) RemoveElement(id int64) error {
	return a.svc.Decks.RemoveElement(domain.ElementID(id))
}

// SelectElement selects an element on the current slide; 0 clears the
// selection.
func (a *App) SelectElement(id int64) error {
	return a.svc.Decks.SelectElement(domain.ElementID(id))
}

func (a *App) UnlinkImage(slideID int, elementID int64) error {
	return a.svc.Decks.UnlinkImage(slideID, domain.ElementID(elementID))
}

// ============================================================
// History
// ============================================================

func (a *App) Undo() (bool, error) {
	return a.svc.Decks.Undo()
}

func (a *App) Redo() (bool, error) {
	return a.svc.Decks.Redo()
}
