package app

import (
	"path/filepath"
	"strings"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"slides/internal/domain"
	"slides/internal/export"
	"slides/internal/service"
)

// ============================================================
// One-off export
// ============================================================

func (a *App) ExportFormats() []export.FormatSpec {
	return a.svc.Exports.Formats()
}

// ExportDeck asks where to save the open deck and writes it as format.
// Returns the written path, or "" when the dialog is cancelled.
func (a *App) ExportDeck(format string) (string, error) {
	exp, err := export.Get(format)
	if err != nil {
		return "", err
	}
	st, err := a.svc.Decks.State()
	if err != nil {
		return "", err
	}
	spec := exp.Spec()

	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:            "Export " + spec.Label,
		DefaultDirectory: a.cfg.Export.Directory,
		DefaultFilename:  exportFilename(st.Deck.Name, spec.Extension),
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: spec.Label, Pattern: "*" + spec.Extension},
		},
	})
	if err != nil || path == "" {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(path), spec.Extension) {
		path += spec.Extension
	}
	if err := a.svc.Exports.ExportOpenDeck(a.ctx, format, path); err != nil {
		return "", err
	}
	return path, nil
}

// exportFilename turns a deck name into a file name safe on every platform.
func exportFilename(name, ext string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "deck"
	}
	return name + ext
}

// ============================================================
// Export jobs
// ============================================================

func (a *App) ListExportJobs() ([]domain.ExportJob, error) {
	return a.svc.Jobs.ListJobs()
}

func (a *App) CreateExportJob(input service.CreateExportJobInput) (*domain.ExportJob, error) {
	return a.svc.Jobs.CreateJob(a.ctx, input)
}

func (a *App) SetExportJobEnabled(id string, enabled bool) error {
	return a.svc.Jobs.SetJobEnabled(a.ctx, id, enabled)
}

func (a *App) DeleteExportJob(id string) error {
	return a.svc.Jobs.DeleteJob(a.ctx, id)
}

// RunExportJob runs a job now, outside its schedule.
func (a *App) RunExportJob(id string) (*domain.ExportJob, error) {
	return a.svc.Jobs.RunJob(a.ctx, id)
}

// PickExportPath asks for an output file for a job.
func (a *App) PickExportPath(format string) (string, error) {
	exp, err := export.Get(format)
	if err != nil {
		return "", err
	}
	spec := exp.Spec()
	return wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:            "Export Job Output",
		DefaultDirectory: a.cfg.Export.Directory,
		DefaultFilename:  "deck" + spec.Extension,
		Filters:          []wailsRuntime.FileFilter{{DisplayName: spec.Label, Pattern: "*" + spec.Extension}},
	})
}
