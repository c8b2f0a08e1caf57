package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"slides/internal/domain"
	"slides/internal/service"
)

var imageFilters = []wailsRuntime.FileFilter{
	{DisplayName: "Images", Pattern: "*.png;*.jpg;*.jpeg;*.gif;*.webp"},
	{DisplayName: "All Files", Pattern: "*.*"},
}

func (a *App) pickImage(title string) (string, error) {
	return wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:   title,
		Filters: imageFilters,
	})
}

// ============================================================
// Image files
// ============================================================

// InsertImageFile asks for an image file and embeds it as a new element.
// Returns 0 when the dialog is cancelled.
func (a *App) InsertImageFile() (int64, error) {
	path, err := a.pickImage("Insert Image")
	if err != nil || path == "" {
		return 0, err
	}
	id, err := a.svc.Decks.AddImageFile(path)
	return int64(id), err
}

// PickBackgroundImage asks for an image file and sets it as the slide's
// background.
func (a *App) PickBackgroundImage(slideID int) error {
	path, err := a.pickImage("Background Image")
	if err != nil || path == "" {
		return err
	}
	return a.svc.Decks.SetBackgroundImageFile(slideID, path)
}

// LinkImageFile asks for a file and keeps the image element in sync with
// it: saving the file in another program updates the slide.
func (a *App) LinkImageFile(slideID int, elementID int64) (string, error) {
	path, err := a.pickImage("Link Image File")
	if err != nil || path == "" {
		return "", err
	}
	if err := a.svc.Decks.LinkImageFile(slideID, domain.ElementID(elementID), path); err != nil {
		return "", err
	}
	return path, nil
}

// ============================================================
// Image search
// ============================================================

func (a *App) SearchImages(query string) []service.ImageResult {
	return a.svc.Images.Search(a.ctx, query)
}

func (a *App) LastImageResults() []service.ImageResult {
	return a.svc.Images.Results()
}

func (a *App) InsertSearchImage(url string) (int64, error) {
	id, err := a.svc.Images.Insert(a.ctx, url)
	return int64(id), err
}

// ============================================================
// Dictation
// ============================================================

func (a *App) DictationStatus() service.DictationStatus {
	return a.svc.Dictation.Status()
}

// ToggleDictation starts or stops a dictation session.
func (a *App) ToggleDictation() (bool, error) {
	return a.svc.Dictation.Toggle(a.ctx)
}

func (a *App) StopDictation() {
	a.svc.Dictation.Stop(a.ctx)
}

// PushTranscript receives a recognition result from the webview.
func (a *App) PushTranscript(chunk service.TranscriptChunk) error {
	return a.svc.Dictation.Push(a.ctx, chunk)
}

// ReportDictationUnsupported is called when the webview has no speech
// recognition.
func (a *App) ReportDictationUnsupported() error {
	return a.svc.Dictation.ReportUnsupported(a.ctx)
}

// SetDictationLocale switches the recognition language and remembers it.
func (a *App) SetDictationLocale(locale string) error {
	if err := a.svc.Dictation.SetLocale(a.ctx, locale); err != nil {
		return err
	}
	return a.svc.Settings.SetDictationLocale(locale)
}
