package service_test

import (
	"testing"

	"slides/internal/service"
)

// ─────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────

func TestSettings_WindowSize(t *testing.T) {
	f := newFixture(t)
	s := service.NewSettingsService(f.settings, nil)

	if got := s.LoadWindowSize(); got != (service.WindowSize{Width: 1280, Height: 800}) {
		t.Errorf("expected defaults, got %+v", got)
	}

	if err := s.SaveWindowSize(1600, 900); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadWindowSize(); got != (service.WindowSize{Width: 1600, Height: 900}) {
		t.Errorf("expected saved size, got %+v", got)
	}

	if err := s.SaveWindowSize(300, 200); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadWindowSize(); got != (service.WindowSize{Width: 1280, Height: 800}) {
		t.Errorf("expected tiny windows to fall back to defaults, got %+v", got)
	}
}

func TestSettings_DictationLocale(t *testing.T) {
	f := newFixture(t)
	s := service.NewSettingsService(f.settings, nil)

	if got := s.DictationLocale("en-US"); got != "en-US" {
		t.Errorf("expected fallback, got %q", got)
	}
	if err := s.SetDictationLocale("ko-KR"); err != nil {
		t.Fatal(err)
	}
	if got := s.DictationLocale("en-US"); got != "ko-KR" {
		t.Errorf("expected ko-KR, got %q", got)
	}
	if err := s.SetDictationLocale("xx-XX"); err == nil {
		t.Error("expected unsupported locale to be rejected")
	}
}

func TestSettings_LastDeck(t *testing.T) {
	f := newFixture(t)
	s := service.NewSettingsService(f.settings, nil)

	if got := s.LastDeckID(); got != "" {
		t.Errorf("expected no last deck, got %q", got)
	}
	s.SetLastDeckID("deck-1")
	s.SetLastDeckID("deck-2")
	if got := s.LastDeckID(); got != "deck-2" {
		t.Errorf("expected deck-2, got %q", got)
	}
	s.SetLastDeckID("")
	if got := s.LastDeckID(); got != "" {
		t.Errorf("expected last deck forgotten, got %q", got)
	}
}
