package service_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slides/internal/export"
	"slides/internal/service"
)

// ─────────────────────────────────────────────────────────────
// One-off exports
// ─────────────────────────────────────────────────────────────

func TestExportService_Formats(t *testing.T) {
	f := newFixture(t)
	svc := service.NewExportService(f.decks, f.emitter, nil)

	var names []string
	for _, spec := range svc.Formats() {
		names = append(names, spec.Format)
	}
	if strings.Join(names, ",") != "docx,pdf,pptx" {
		t.Errorf("unexpected formats: %v", names)
	}
}

func TestExportService_ExportOpenDeck(t *testing.T) {
	f := newFixture(t)
	id := f.openNewDeck(t, "Export me")
	f.decks.AddElement("text", "Hello")
	svc := service.NewExportService(f.decks, f.emitter, nil)

	dir := t.TempDir()
	if err := svc.ExportOpenDeck(context.Background(), "pdf", filepath.Join(dir, "out")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.pdf"))
	if err != nil {
		t.Fatalf("expected extension to be appended: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("expected a pdf file")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the export in %s, found %d entries", dir, len(entries))
	}

	events := f.emitter.Named(service.EventExportCompleted)
	if len(events) != 1 {
		t.Fatalf("expected one export:completed event, got %d", len(events))
	}
	if got := events[0].Data.(map[string]string)["deckId"]; got != id {
		t.Errorf("expected deck %s in event, got %s", id, got)
	}
}

func TestExportService_StoredDeck(t *testing.T) {
	f := newFixture(t)
	d, _ := f.decks.CreateDeck("On disk")
	svc := service.NewExportService(f.decks, f.emitter, nil)

	path := filepath.Join(t.TempDir(), "nested", "deck.docx")
	if err := svc.ExportDeck(context.Background(), d.ID, "docx", path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func TestExportService_Errors(t *testing.T) {
	f := newFixture(t)
	svc := service.NewExportService(f.decks, f.emitter, nil)
	ctx := context.Background()
	dir := t.TempDir()

	if err := svc.ExportOpenDeck(ctx, "pdf", filepath.Join(dir, "x.pdf")); !errors.Is(err, service.ErrNoDeckOpen) {
		t.Errorf("expected ErrNoDeckOpen, got %v", err)
	}
	if err := svc.ExportDeck(ctx, "missing", "key", filepath.Join(dir, "x.key")); !errors.Is(err, export.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if err := svc.ExportDeck(ctx, "missing", "pdf", filepath.Join(dir, "x.pdf")); err == nil {
		t.Error("expected unknown deck to fail")
	}
	if err := svc.ExportDeck(ctx, "missing", "pdf", ""); err == nil {
		t.Error("expected empty path to fail")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed exports left %d files behind", len(entries))
	}
	if len(f.emitter.Named(service.EventExportCompleted)) != 0 {
		t.Error("failed exports should not emit export:completed")
	}
}

func TestExportService_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.openNewDeck(t, "Cancelled")
	svc := service.NewExportService(f.decks, f.emitter, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "deck.pptx")
	if err := svc.ExportOpenDeck(ctx, "pptx", path); err == nil {
		t.Error("expected cancelled export to fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cancelled export should not leave a file")
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	svc.WaitRunning(waitCtx)
}
