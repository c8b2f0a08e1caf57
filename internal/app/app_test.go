package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"slides/internal/config"
	mcpserver "slides/internal/mcp"
	"slides/internal/service"
	"slides/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Storage.Path = filepath.Join(dir, "slides.db")
	cfg.Logging.File = ""
	cfg.Autosave.Enabled = false
	cfg.Export.Directory = dir
	return cfg
}

func openTestServices(t *testing.T, cfg *config.Config, emitter service.EventEmitter) *Services {
	t.Helper()
	svc, err := OpenServices(context.Background(), cfg, emitter, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenServices: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Close(ctx)
	})
	return svc
}

// ─────────────────────────────────────────────────────────────
// Bootstrap
// ─────────────────────────────────────────────────────────────

func TestOpenServices_SQLite(t *testing.T) {
	cfg := testConfig(t)
	svc := openTestServices(t, cfg, &service.MockEmitter{})

	if svc.Mongo != nil {
		t.Error("sqlite driver should not open mongo")
	}
	d, err := svc.Decks.CreateDeck("Bootstrap")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Decks.OpenDeck(context.Background(), d.ID); err != nil {
		t.Fatal(err)
	}
	if got := svc.Dictation.Locale(); got != cfg.Dictation.Locale {
		t.Errorf("expected dictation locale %s, got %s", cfg.Dictation.Locale, got)
	}
	if _, err := os.Stat(cfg.Storage.Path); err != nil {
		t.Errorf("expected database file: %v", err)
	}
}

func TestOpenServices_StoredLocaleWins(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc, err := OpenServices(ctx, cfg, service.NopEmitter{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Settings.SetDictationLocale("ko-KR"); err != nil {
		t.Fatal(err)
	}
	svc.Close(ctx)

	again, err := OpenServices(context.Background(), cfg, service.NopEmitter{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close(ctx)
	if got := again.Dictation.Locale(); got != "ko-KR" {
		t.Errorf("expected stored locale ko-KR, got %s", got)
	}
}

// ─────────────────────────────────────────────────────────────
// Headless export
// ─────────────────────────────────────────────────────────────

func TestExportHeadless(t *testing.T) {
	cfg := testConfig(t)
	svc, err := OpenServices(context.Background(), cfg, service.NopEmitter{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	d, err := svc.Decks.CreateDeck("Quarterly")
	if err != nil {
		t.Fatal(err)
	}
	svc.Close(context.Background())

	out := filepath.Join(t.TempDir(), "quarterly")
	id, err := ExportHeadless(context.Background(), cfg, zap.NewNop(), "Quarterly", "pdf", out)
	if err != nil {
		t.Fatal(err)
	}
	if id != d.ID {
		t.Errorf("expected deck %s, got %s", d.ID, id)
	}
	data, err := os.ReadFile(out + ".pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Error("expected a PDF file")
	}
}

func TestResolveDeck(t *testing.T) {
	svc := openTestServices(t, testConfig(t), service.NopEmitter{})
	a, _ := svc.Decks.CreateDeck("Twin")
	svc.Decks.CreateDeck("Twin")
	solo, _ := svc.Decks.CreateDeck("Solo")

	tests := []struct {
		ref     string
		want    string
		wantErr string
	}{
		{ref: a.ID, want: a.ID},
		{ref: "Solo", want: solo.ID},
		{ref: "Twin", wantErr: "ambiguous"},
		{ref: "Missing", wantErr: "not found"},
		{ref: " ", wantErr: "required"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveDeck(svc.Decks, tt.ref)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestExportFilename(t *testing.T) {
	tests := map[string]string{
		"Q3 review":      "Q3 review.pptx",
		"a/b:c":          "a-b-c.pptx",
		"  ":             "deck.pptx",
		`why?<"really">`: "why---really--.pptx",
	}
	for name, want := range tests {
		if got := exportFilename(name, ".pptx"); got != want {
			t.Errorf("exportFilename(%q) = %q, want %q", name, got, want)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Deck watcher
// ─────────────────────────────────────────────────────────────

func TestDeckWatcher_Approvals(t *testing.T) {
	svc := openTestServices(t, testConfig(t), service.NopEmitter{})
	emitter := &service.MockEmitter{}
	w := newDeckWatcher(context.Background(), svc, emitter, zap.NewNop())

	if err := svc.Approvals.Create(&storage.Approval{ID: "ap-1", Tool: "delete_slide", Description: "Delete slide 2"}); err != nil {
		t.Fatal(err)
	}
	w.check()
	w.check()

	raised := emitter.Named(mcpserver.EventApprovalRequired)
	if len(raised) != 1 {
		t.Fatalf("expected approval raised once, got %d", len(raised))
	}
	if act := raised[0].Data.(mcpserver.PendingAction); act.ID != "ap-1" || act.Tool != "delete_slide" {
		t.Errorf("unexpected pending action: %+v", act)
	}

	// The MCP process gave up and removed the row.
	svc.Approvals.Delete("ap-1")
	w.check()
	if got := emitter.Named(mcpserver.EventApprovalDismissed); len(got) != 1 {
		t.Errorf("expected one dismissal, got %d", len(got))
	}
}

func TestDeckWatcher_ResolvedApprovalIsNotWithdrawn(t *testing.T) {
	svc := openTestServices(t, testConfig(t), service.NopEmitter{})
	emitter := &service.MockEmitter{}
	w := newDeckWatcher(context.Background(), svc, emitter, zap.NewNop())

	svc.Approvals.Create(&storage.Approval{ID: "ap-2", Tool: "remove_element"})
	w.check()

	if err := svc.Approvals.Resolve("ap-2", true); err != nil {
		t.Fatal(err)
	}
	w.forgetApproval("ap-2")
	w.check()

	if got := emitter.Named(mcpserver.EventApprovalDismissed); len(got) != 0 {
		t.Errorf("resolved approval should not be dismissed by the watcher, got %d", len(got))
	}
}

func TestDeckWatcher_ExternalSave(t *testing.T) {
	cfg := testConfig(t)
	svc := openTestServices(t, cfg, service.NopEmitter{})
	emitter := &service.MockEmitter{}
	w := newDeckWatcher(context.Background(), svc, emitter, zap.NewNop())
	ctx := context.Background()

	d, _ := svc.Decks.CreateDeck("Shared")
	if _, err := svc.Decks.OpenDeck(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	w.check()
	if len(emitter.Recorded()) != 0 {
		t.Fatalf("first check should only record a baseline, got %+v", emitter.Recorded())
	}

	// Another process (the MCP server) edits and saves the same deck.
	other := service.NewDeckService(storage.NewDeckStore(svc.DB), storage.NewRevisionStore(svc.DB), service.NopEmitter{}, nil)
	defer other.CloseDeck()
	time.Sleep(5 * time.Millisecond)
	other.OpenDeck(ctx, d.ID)
	other.AddSlide()
	if err := other.SaveDeck(ctx, "agent"); err != nil {
		t.Fatal(err)
	}

	w.check()
	if len(emitter.Named(EventLibraryChanged)) != 1 {
		t.Error("expected decks:changed")
	}
	if len(emitter.Named(EventDeckReloaded)) != 1 {
		t.Error("expected deck:reloaded")
	}
	st, _ := svc.Decks.State()
	if len(st.Slides) != 2 {
		t.Errorf("expected reloaded deck with 2 slides, got %d", len(st.Slides))
	}
}

func TestDeckWatcher_StartStop(t *testing.T) {
	svc := openTestServices(t, testConfig(t), service.NopEmitter{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w := newDeckWatcher(context.Background(), svc, service.NopEmitter{}, zap.NewNop())
	w.Start()
	w.Stop()
	w.Stop()
}
