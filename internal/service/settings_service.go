package service

import (
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"slides/internal/config"
	"slides/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Settings Persistence
// ─────────────────────────────────────────────────────────────
//
// Window size, dictation locale and the last opened deck survive between
// sessions as key/value rows in app_settings.

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type SettingsService struct {
	store  *storage.SettingsStore
	logger *zap.Logger
}

func NewSettingsService(store *storage.SettingsStore, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: store, logger: logger}
}

const (
	settingWindowWidth     = "window_width"
	settingWindowHeight    = "window_height"
	settingDictationLocale = "dictation_locale"
	settingLastDeckID      = "last_deck_id"

	defaultWindowWidth  = 1280
	defaultWindowHeight = 800
	minWindowWidth      = 800
	minWindowHeight     = 600
)

// LoadWindowSize returns the saved window dimensions, or the defaults.
func (s *SettingsService) LoadWindowSize() WindowSize {
	w := s.intSetting(settingWindowWidth, defaultWindowWidth)
	h := s.intSetting(settingWindowHeight, defaultWindowHeight)
	if w < minWindowWidth {
		w = defaultWindowWidth
	}
	if h < minWindowHeight {
		h = defaultWindowHeight
	}
	return WindowSize{Width: w, Height: h}
}

// SaveWindowSize persists the current window dimensions.
func (s *SettingsService) SaveWindowSize(width, height int) error {
	if err := s.store.Set(settingWindowWidth, strconv.Itoa(width)); err != nil {
		return fmt.Errorf("save window width: %w", err)
	}
	if err := s.store.Set(settingWindowHeight, strconv.Itoa(height)); err != nil {
		return fmt.Errorf("save window height: %w", err)
	}
	return nil
}

// DictationLocale returns the saved locale, or fallback when none is saved.
func (s *SettingsService) DictationLocale(fallback string) string {
	v, ok, err := s.store.Get(settingDictationLocale)
	if err != nil {
		s.logger.Warn("settings: read dictation locale", zap.Error(err))
	}
	if !ok || !slices.Contains(config.Locales, v) {
		return fallback
	}
	return v
}

func (s *SettingsService) SetDictationLocale(locale string) error {
	if !slices.Contains(config.Locales, locale) {
		return fmt.Errorf("unsupported dictation locale %q", locale)
	}
	if err := s.store.Set(settingDictationLocale, locale); err != nil {
		return fmt.Errorf("save dictation locale: %w", err)
	}
	return nil
}

// LastDeckID returns the deck that was open when the app last quit.
func (s *SettingsService) LastDeckID() string {
	v, _, err := s.store.Get(settingLastDeckID)
	if err != nil {
		s.logger.Warn("settings: read last deck", zap.Error(err))
	}
	return v
}

// SetLastDeckID records id; an empty id forgets it. Failures are logged.
func (s *SettingsService) SetLastDeckID(id string) {
	var err error
	if id == "" {
		err = s.store.Delete(settingLastDeckID)
	} else {
		err = s.store.Set(settingLastDeckID, id)
	}
	if err != nil {
		s.logger.Warn("settings: save last deck", zap.String("deck", id), zap.Error(err))
	}
}

func (s *SettingsService) intSetting(key string, fallback int) int {
	v, ok, err := s.store.Get(key)
	if err != nil {
		s.logger.Warn("settings: read", zap.String("key", key), zap.Error(err))
		return fallback
	}
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
