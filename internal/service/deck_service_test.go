package service_test

import (
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"slides/internal/domain"
	"slides/internal/service"
	"slides/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Library
// ─────────────────────────────────────────────────────────────

func TestDeckService_CreateAndOpen(t *testing.T) {
	f := newFixture(t)

	d, err := f.decks.CreateDeck("  ")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Untitled deck" {
		t.Errorf("expected default name, got %q", d.Name)
	}

	st, err := f.decks.OpenDeck(context.Background(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Slides) != 1 || st.Slides[0].ID != 1 {
		t.Fatalf("expected one seeded slide, got %+v", st.Slides)
	}
	if st.CurrentSlideID != 1 || st.SelectedElementID != domain.NoElement {
		t.Errorf("unexpected cursor: slide=%d element=%d", st.CurrentSlideID, st.SelectedElementID)
	}
	if f.decks.OpenDeckID() != d.ID {
		t.Errorf("expected %s open, got %q", d.ID, f.decks.OpenDeckID())
	}
	if len(f.emitter.Named(service.EventDeckChanged)) == 0 {
		t.Error("expected deck:changed on open")
	}
}

func TestDeckService_RenameAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openNewDeck(t, "Draft")

	if err := f.decks.RenameDeck(ctx, id, "Quarterly review"); err != nil {
		t.Fatal(err)
	}
	st, _ := f.decks.State()
	if st.Deck.Name != "Quarterly review" {
		t.Errorf("open deck not renamed: %q", st.Deck.Name)
	}
	if err := f.decks.RenameDeck(ctx, id, " "); err == nil {
		t.Error("expected empty name to be rejected")
	}

	if err := f.decks.DeleteDeck(id); err != nil {
		t.Fatal(err)
	}
	if f.decks.OpenDeckID() != "" {
		t.Error("expected deleting the open deck to close it")
	}
	decks, _ := f.decks.ListDecks()
	if len(decks) != 0 {
		t.Errorf("expected no decks, got %d", len(decks))
	}
}

func TestDeckService_NoDeckOpen(t *testing.T) {
	f := newFixture(t)

	if _, err := f.decks.AddSlide(); !errors.Is(err, service.ErrNoDeckOpen) {
		t.Errorf("AddSlide: expected ErrNoDeckOpen, got %v", err)
	}
	if _, err := f.decks.AddElement("text", ""); !errors.Is(err, service.ErrNoDeckOpen) {
		t.Errorf("AddElement: expected ErrNoDeckOpen, got %v", err)
	}
	if err := f.decks.SaveDeck(context.Background(), ""); !errors.Is(err, service.ErrNoDeckOpen) {
		t.Errorf("SaveDeck: expected ErrNoDeckOpen, got %v", err)
	}
	if _, err := f.decks.State(); !errors.Is(err, service.ErrNoDeckOpen) {
		t.Errorf("State: expected ErrNoDeckOpen, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Edits
// ─────────────────────────────────────────────────────────────

func TestDeckService_EditsEmitState(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Edits")
	before := len(f.emitter.Named(service.EventDeckChanged))

	id, err := f.decks.AddElement("text", "Hello")
	if err != nil {
		t.Fatal(err)
	}
	content := "Hi"
	if err := f.decks.UpdateElement(id, domain.ElementPatch{Content: &content}); err != nil {
		t.Fatal(err)
	}

	events := f.emitter.Named(service.EventDeckChanged)
	if len(events) != before+2 {
		t.Fatalf("expected 2 more deck:changed events, got %d", len(events)-before)
	}
	st := events[len(events)-1].Data.(*domain.DeckState)
	el := st.Slides[0].Elements[0]
	if el.Content != "Hi" || el.X != 100 || el.Y != 100 {
		t.Errorf("unexpected element after update: %+v", el)
	}
	if !st.CanUndo {
		t.Error("expected CanUndo after edits")
	}
}

func TestDeckService_UnknownElementKind(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Kinds")

	if _, err := f.decks.AddElement("video", ""); err == nil {
		t.Error("expected unknown kind to be rejected")
	}
}

func TestDeckService_UndoRedo(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "History")

	slideID, _ := f.decks.AddSlide()
	if ok, _ := f.decks.Undo(); !ok {
		t.Fatal("expected undo to apply")
	}
	st, _ := f.decks.State()
	if len(st.Slides) != 1 || st.CurrentSlideID != 1 {
		t.Fatalf("undo did not restore one slide: %+v", st)
	}
	if ok, _ := f.decks.Redo(); !ok {
		t.Fatal("expected redo to apply")
	}
	st, _ = f.decks.State()
	if len(st.Slides) != 2 || st.Slides[1].ID != slideID {
		t.Errorf("redo did not restore slide %d: %+v", slideID, st.Slides)
	}
}

func TestDeckService_BackgroundImageFile(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Backgrounds")

	bgColor := "#112233"
	if err := f.decks.SetBackground(1, domain.BackgroundPatch{Color: &bgColor}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "bg.png")
	writePNG(t, path, colorRed)
	if err := f.decks.SetBackgroundImageFile(1, path); err != nil {
		t.Fatal(err)
	}

	st, _ := f.decks.State()
	bg := st.Slides[0].Background
	if bg == nil || !strings.HasPrefix(bg.Image, "data:image/png;base64,") {
		t.Fatalf("expected embedded background image, got %+v", bg)
	}
	if bg.Color != "" {
		t.Errorf("expected image to clear color, got %q", bg.Color)
	}
}

// ─────────────────────────────────────────────────────────────
// Persistence
// ─────────────────────────────────────────────────────────────

func TestDeckService_SaveAndReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openNewDeck(t, "Persisted")

	f.decks.AddElement("text", "Title")
	f.decks.AddSlide()
	f.decks.AddElement("image", "data:image/png;base64,AAAA")
	want, _ := f.decks.State()

	if !f.decks.Dirty() {
		t.Fatal("expected unsaved changes")
	}
	if err := f.decks.SaveDeck(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if f.decks.Dirty() {
		t.Error("expected clean deck after save")
	}
	if len(f.emitter.Named(service.EventDeckSaved)) != 1 {
		t.Error("expected one deck:saved event")
	}

	f.decks.CloseDeck()
	got, err := f.decks.OpenDeck(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want.Slides, got.Slides); diff != "" {
		t.Errorf("reopened slides differ (-want +got):\n%s", diff)
	}
}

func TestDeckService_SaveIfDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openNewDeck(t, "Autosave")

	saved, err := f.decks.SaveIfDirty(ctx)
	if err != nil || saved {
		t.Fatalf("expected clean deck to be skipped, saved=%v err=%v", saved, err)
	}

	f.decks.AddSlide()
	saved, err = f.decks.SaveIfDirty(ctx)
	if err != nil || !saved {
		t.Fatalf("expected dirty deck to be saved, saved=%v err=%v", saved, err)
	}

	revs, err := f.decks.ListRevisions()
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 0 {
		t.Errorf("autosave should not record revisions, got %d", len(revs))
	}
}

func TestDeckService_ReloadIfChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openNewDeck(t, "Shared")

	reloaded, err := f.decks.ReloadIfChanged(ctx)
	if err != nil || reloaded {
		t.Fatalf("expected no reload before any change, reloaded=%v err=%v", reloaded, err)
	}

	// Our own save is not an external change.
	f.decks.AddSlide()
	if err := f.decks.SaveDeck(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if reloaded, _ := f.decks.ReloadIfChanged(ctx); reloaded {
		t.Fatal("own save must not trigger a reload")
	}

	// A second process writes the same deck.
	other := service.NewDeckService(storage.NewDeckStore(f.db), storage.NewRevisionStore(f.db), service.NopEmitter{}, nil)
	defer other.CloseDeck()
	time.Sleep(5 * time.Millisecond)
	if _, err := other.OpenDeck(ctx, id); err != nil {
		t.Fatal(err)
	}
	other.AddSlide()
	if err := other.SaveDeck(ctx, "external"); err != nil {
		t.Fatal(err)
	}

	reloaded, err = f.decks.ReloadIfChanged(ctx)
	if err != nil || !reloaded {
		t.Fatalf("expected reload, reloaded=%v err=%v", reloaded, err)
	}
	st, _ := f.decks.State()
	if len(st.Slides) != 3 {
		t.Errorf("expected 3 slides after reload, got %d", len(st.Slides))
	}
}

func TestDeckService_SelectionIsNotDirty(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Selection")

	id, _ := f.decks.AddElement("text", "")
	f.decks.SaveDeck(context.Background(), "")

	f.decks.SelectElement(domain.NoElement)
	f.decks.SelectElement(id)
	if f.decks.Dirty() {
		t.Error("selection changes should not mark the deck dirty")
	}
}

func TestDeckService_Revisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openNewDeck(t, "Revisions")

	f.decks.AddElement("text", "v1")
	if err := f.decks.SaveDeck(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	f.decks.AddSlide()
	f.decks.AddSlide()
	if err := f.decks.SaveDeck(ctx, "second"); err != nil {
		t.Fatal(err)
	}

	revs, err := f.decks.ListRevisions()
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 || revs[0].Label != "second" || revs[1].Label != "first" {
		t.Fatalf("unexpected revisions: %+v", revs)
	}

	if err := f.decks.RestoreRevision(revs[1].ID); err != nil {
		t.Fatal(err)
	}
	st, _ := f.decks.State()
	if len(st.Slides) != 1 || st.Slides[0].Elements[0].Content != "v1" {
		t.Fatalf("restore did not bring back the first revision: %+v", st.Slides)
	}
	if !f.decks.Dirty() {
		t.Error("restored revision should be unsaved")
	}

	// Restoring is undoable.
	f.decks.Undo()
	st, _ = f.decks.State()
	if len(st.Slides) != 3 {
		t.Errorf("expected undo to bring back 3 slides, got %d", len(st.Slides))
	}
}

func TestDeckService_RestoreForeignRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openNewDeck(t, "A")
	f.decks.SaveDeck(ctx, "a")
	revs, _ := f.decks.ListRevisions()

	f.openNewDeck(t, "B")
	if err := f.decks.RestoreRevision(revs[0].ID); err == nil {
		t.Error("expected revision of another deck to be rejected")
	}
}

func TestDeckService_LoadDocument(t *testing.T) {
	f := newFixture(t)
	id := f.openNewDeck(t, "Live")
	f.decks.AddElement("text", "unsaved")

	doc, err := f.decks.LoadDocument(id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Live" || len(doc.Slides[0].Elements) != 1 {
		t.Errorf("expected live document, got %+v", doc)
	}

	other, _ := f.decks.CreateDeck("Stored")
	doc, err = f.decks.LoadDocument(other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Stored" || len(doc.Slides) != 1 {
		t.Errorf("expected stored document, got %+v", doc)
	}
}

// ─────────────────────────────────────────────────────────────
// Linked images and thumbnails
// ─────────────────────────────────────────────────────────────

var (
	colorRed  = color.NRGBA{R: 255, A: 255}
	colorBlue = color.NRGBA{B: 255, A: 255}
)

func TestDeckService_LinkImageFile(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Linked")

	path := filepath.Join(t.TempDir(), "chart.png")
	writePNG(t, path, colorRed)

	id, err := f.decks.AddImageFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.decks.LinkImageFile(1, id, path); err != nil {
		t.Fatal(err)
	}

	content := func() string {
		st, _ := f.decks.State()
		el, _ := st.Slides[0].Element(id)
		return el.Content
	}
	first := content()
	st, _ := f.decks.State()
	if el, _ := st.Slides[0].Element(id); el.Source != path {
		t.Errorf("expected source %q, got %q", path, el.Source)
	}

	writePNG(t, path, colorBlue)
	eventually(t, 3*time.Second, func() bool { return content() != first },
		"linked image was not re-embedded after the file changed")

	if err := f.decks.UnlinkImage(1, id); err != nil {
		t.Fatal(err)
	}
	st, _ = f.decks.State()
	if el, _ := st.Slides[0].Element(id); el.Source != "" {
		t.Errorf("expected source cleared, got %q", el.Source)
	}
}

func TestDeckService_LinkRejectsTextElement(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Linked")

	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, colorRed)
	id, _ := f.decks.AddElement("text", "caption")

	if err := f.decks.LinkImageFile(1, id, path); err == nil {
		t.Error("expected linking a text element to fail")
	}
}

func TestDeckService_RenderThumbnail(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Thumbs")
	f.decks.AddElement("text", "Hello")

	uri, err := f.decks.RenderThumbnail(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("expected png data url, got %.40q", uri)
	}
	if _, err := f.decks.RenderThumbnail(99, 0); err == nil {
		t.Error("expected unknown slide to fail")
	}
}

// linkNewImage adds an image element to the current slide and links it to
// a fresh red PNG.
func linkNewImage(t *testing.T, f *fixture, slideID int) (domain.ElementID, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.png")
	writePNG(t, path, colorRed)
	id, err := f.decks.AddImageFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.decks.LinkImageFile(slideID, id, path); err != nil {
		t.Fatal(err)
	}
	return id, path
}

func elementContent(f *fixture, slideID int, id domain.ElementID) (string, bool) {
	st, err := f.decks.State()
	if err != nil {
		return "", false
	}
	for _, sl := range st.Slides {
		if sl.ID != slideID {
			continue
		}
		el, ok := sl.Element(id)
		return el.Content, ok
	}
	return "", false
}

func TestDeckService_RemoveFromOtherSlideKeepsLink(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Linked")
	id, path := linkNewImage(t, f, 1)
	first, _ := elementContent(f, 1, id)

	if _, err := f.decks.AddSlide(); err != nil {
		t.Fatal(err)
	}
	// The element is on slide 1, so this does nothing.
	if err := f.decks.RemoveElement(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := elementContent(f, 1, id); !ok {
		t.Fatal("element on another slide was removed")
	}
	if got := len(f.decks.LinkedImages()); got != 1 {
		t.Fatalf("expected the link to survive, got %d links", got)
	}

	writePNG(t, path, colorBlue)
	eventually(t, 3*time.Second, func() bool {
		c, _ := elementContent(f, 1, id)
		return c != first
	}, "linked image was not re-embedded after a no-op remove")
}

func TestDeckService_UndoRemoveRestoresLink(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Linked")
	id, path := linkNewImage(t, f, 1)
	first, _ := elementContent(f, 1, id)

	if err := f.decks.RemoveElement(id); err != nil {
		t.Fatal(err)
	}
	if got := len(f.decks.LinkedImages()); got != 0 {
		t.Fatalf("expected removed element to be unlinked, got %d links", got)
	}

	if ok, err := f.decks.Undo(); err != nil || !ok {
		t.Fatalf("Undo: %v %v", ok, err)
	}
	links := f.decks.LinkedImages()
	if len(links) != 1 || links[0].ElementID != id {
		t.Fatalf("expected link for %d after undo, got %+v", id, links)
	}

	writePNG(t, path, colorBlue)
	eventually(t, 3*time.Second, func() bool {
		c, _ := elementContent(f, 1, id)
		return c != first
	}, "linked image was not re-embedded after undo")
}

func TestDeckService_DeleteSlideDropsLinks(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Linked")
	slideID, err := f.decks.AddSlide()
	if err != nil {
		t.Fatal(err)
	}
	linkNewImage(t, f, slideID)
	if got := len(f.decks.LinkedImages()); got != 1 {
		t.Fatalf("expected 1 link, got %d", got)
	}

	if err := f.decks.DeleteSlide(slideID); err != nil {
		t.Fatal(err)
	}
	if got := f.decks.LinkedImages(); len(got) != 0 {
		t.Errorf("expected no links after deleting the slide, got %+v", got)
	}
}

func TestDeckService_SetCurrentSlideClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Selection")
	id, _ := f.decks.AddElement("text", "title")

	// Re-selecting the current slide keeps the selection.
	if err := f.decks.SetCurrentSlide(1); err != nil {
		t.Fatal(err)
	}
	st, _ := f.decks.State()
	if st.SelectedElementID != id {
		t.Fatalf("expected %d still selected, got %d", id, st.SelectedElementID)
	}

	slideID, _ := f.decks.AddSlide()
	if err := f.decks.SetCurrentSlide(1); err != nil {
		t.Fatal(err)
	}
	if err := f.decks.SelectElement(id); err != nil {
		t.Fatal(err)
	}
	if err := f.decks.SetCurrentSlide(slideID); err != nil {
		t.Fatal(err)
	}
	st, _ = f.decks.State()
	if st.CurrentSlideID != slideID {
		t.Fatalf("expected slide %d current, got %d", slideID, st.CurrentSlideID)
	}
	if st.SelectedElementID != domain.NoElement {
		t.Errorf("expected selection cleared, got %d", st.SelectedElementID)
	}
}
