package app

import (
	"slides/internal/config"
	mcpserver "slides/internal/mcp"
	"slides/internal/storage"
)

// ============================================================
// Settings
// ============================================================

// Settings is what the preferences panel shows.
type Settings struct {
	DataDir         string   `json:"dataDir"`
	StorageDriver   string   `json:"storageDriver"`
	Autosave        bool     `json:"autosave"`
	AutosaveEvery   string   `json:"autosaveEvery"`
	DictationLocale string   `json:"dictationLocale"`
	Locales         []string `json:"locales"`
	ExportDirectory string   `json:"exportDirectory"`
}

func (a *App) GetSettings() Settings {
	return Settings{
		DataDir:         a.cfg.DataDir,
		StorageDriver:   a.cfg.Storage.Driver,
		Autosave:        a.cfg.Autosave.Enabled,
		AutosaveEvery:   a.cfg.Autosave.Schedule,
		DictationLocale: a.svc.Dictation.Locale(),
		Locales:         config.Locales,
		ExportDirectory: a.cfg.Export.Directory,
	}
}

// ============================================================
// MCP approvals
// ============================================================

// ListPendingApprovals returns destructive MCP actions waiting for the
// user. The deck watcher also pushes them as events.
func (a *App) ListPendingApprovals() ([]storage.Approval, error) {
	return a.svc.Approvals.ListPending()
}

// ApproveMCPAction lets the standalone MCP server go ahead.
func (a *App) ApproveMCPAction(id string) error {
	return a.resolveApproval(id, true)
}

// RejectMCPAction cancels a pending MCP action.
func (a *App) RejectMCPAction(id string) error {
	return a.resolveApproval(id, false)
}

func (a *App) resolveApproval(id string, approved bool) error {
	if err := a.svc.Approvals.Resolve(id, approved); err != nil {
		return err
	}
	a.watcher.forgetApproval(id)
	wailsEmitter{ctx: a.ctx}.Emit(a.ctx, mcpserver.EventApprovalDismissed, map[string]any{
		"id":       id,
		"approved": approved,
	})
	return nil
}
