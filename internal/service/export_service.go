package service

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"slides/internal/export"
)

// ─────────────────────────────────────────────────────────────
// Export Service — one-off exports to a user-chosen path
// ─────────────────────────────────────────────────────────────

// ExportService writes decks through the export registry. The file only
// appears at its final path once it was written completely.
type ExportService struct {
	decks   *DeckService
	emitter EventEmitter
	logger  *zap.Logger
	running runningJobsGuard
}

func NewExportService(decks *DeckService, emitter EventEmitter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{decks: decks, emitter: emitter, logger: logger}
}

// Formats lists the available export formats.
func (s *ExportService) Formats() []export.FormatSpec {
	return export.Formats()
}

// ExportOpenDeck exports the deck being edited, including unsaved changes.
func (s *ExportService) ExportOpenDeck(ctx context.Context, format, path string) error {
	id := s.decks.OpenDeckID()
	if id == "" {
		return ErrNoDeckOpen
	}
	return s.ExportDeck(ctx, id, format, path)
}

// ExportDeck writes deck id as format to path. Only one export per deck
// and format runs at a time.
func (s *ExportService) ExportDeck(ctx context.Context, id, format, path string) error {
	exp, err := export.Get(format)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("export path is required")
	}
	if ext := exp.Spec().Extension; !strings.EqualFold(filepath.Ext(path), ext) {
		path += ext
	}

	key := id + ":" + format
	if !s.running.TryLock(key) {
		return fmt.Errorf("%s export of deck %s is already running", format, id)
	}
	defer s.running.Unlock(key)

	doc, err := s.decks.LoadDocument(id)
	if err != nil {
		return fmt.Errorf("load deck: %w", err)
	}

	if err := writeAtomic(path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		if err := export.Write(ctx, format, doc, w, s.logger); err != nil {
			return err
		}
		return w.Flush()
	}); err != nil {
		s.logger.Error("export failed", zap.String("deck", id), zap.String("format", format), zap.Error(err))
		return err
	}

	s.logger.Info("deck exported", zap.String("deck", id), zap.String("format", format), zap.String("path", path))
	s.emitter.Emit(ctx, EventExportCompleted, map[string]string{
		"deckId": id,
		"format": format,
		"path":   path,
	})
	return nil
}

// WaitRunning blocks until all running exports finish or ctx is cancelled.
func (s *ExportService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// writeAtomic writes to a temp file next to path and renames it into place.
func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".slides-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move export into place: %w", err)
	}
	return nil
}
