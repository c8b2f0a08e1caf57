package app

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"slides/internal/config"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx    context.Context
	cfg    *config.Config
	logger *zap.Logger

	svc     *Services
	watcher *deckWatcher
}

// New creates a new App.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger}
}

// wailsEmitter sends service events to the frontend. Services may emit from
// goroutines with their own contexts, so the Wails context is always used.
type wailsEmitter struct {
	ctx context.Context
}

func (e wailsEmitter) Emit(_ context.Context, event string, data any) {
	wailsRuntime.EventsEmit(e.ctx, event, data)
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	// macOS: disable "Press and Hold" so held keys repeat in text elements.
	if runtime.GOOS == "darwin" {
		exec.Command("defaults", "write", "com.wails.slides", "ApplePressAndHoldEnabled", "-bool", "false").Run()
	}

	svc, err := OpenServices(ctx, a.cfg, wailsEmitter{ctx: ctx}, a.logger)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open storage: %v", err)
		return
	}
	a.svc = svc

	if err := svc.Jobs.Start(ctx); err != nil {
		a.logger.Error("start export scheduler", zap.Error(err))
	}

	a.watcher = newDeckWatcher(ctx, svc, wailsEmitter{ctx: ctx}, a.logger)
	a.watcher.Start()

	size := svc.Settings.LoadWindowSize()
	wailsRuntime.WindowSetSize(ctx, size.Width, size.Height)

	if id := svc.Settings.LastDeckID(); id != "" {
		if _, err := svc.Decks.OpenDeck(ctx, id); err != nil {
			a.logger.Warn("restore last deck", zap.String("deck", id), zap.Error(err))
			svc.Settings.SetLastDeckID("")
		}
	}
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.svc == nil {
		return
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}

	if _, err := a.svc.Decks.SaveIfDirty(ctx); err != nil {
		a.logger.Error("save on exit", zap.Error(err))
	}
	w, h := wailsRuntime.WindowGetSize(ctx)
	if err := a.svc.Settings.SaveWindowSize(w, h); err != nil {
		a.logger.Warn("save window size", zap.Error(err))
	}
	a.svc.Settings.SetLastDeckID(a.svc.Decks.OpenDeckID())

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.svc.Close(waitCtx)
	a.logger.Info("shutdown complete")
	a.logger.Sync()
}
