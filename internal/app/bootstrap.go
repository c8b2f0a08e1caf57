package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"slides/internal/config"
	"slides/internal/domain"
	"slides/internal/secret"
	"slides/internal/service"
	"slides/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Bootstrap — storage and services shared by GUI, MCP and CLI
// ─────────────────────────────────────────────────────────────

// Services is everything a front end (Wails, MCP stdio, CLI) needs.
type Services struct {
	DB        *storage.DB
	Mongo     *storage.MongoDeckStore
	Approvals *storage.ApprovalStore

	Decks     *service.DeckService
	Exports   *service.ExportService
	Jobs      *service.ExportJobService
	Images    *service.ImageSearchService
	Dictation *service.DictationService
	Settings  *service.SettingsService
}

// OpenServices connects the configured storage backend and wires the
// services on top of it.
func OpenServices(ctx context.Context, cfg *config.Config, emitter service.EventEmitter, logger *zap.Logger) (*Services, error) {
	db, mongoStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var repo domain.DeckRepository = storage.NewDeckStore(db)
	if mongoStore != nil {
		repo = mongoStore
	}

	settings := service.NewSettingsService(storage.NewSettingsStore(db), logger)
	decks := service.NewDeckService(repo, storage.NewRevisionStore(db), emitter, logger)
	exports := service.NewExportService(decks, emitter, logger)

	autosave := ""
	if cfg.Autosave.Enabled {
		autosave = cfg.Autosave.Schedule
	}

	return &Services{
		DB:        db,
		Mongo:     mongoStore,
		Approvals: storage.NewApprovalStore(db),
		Decks:     decks,
		Exports:   exports,
		Jobs:      service.NewExportJobService(storage.NewExportJobStore(db), exports, decks, autosave, emitter, logger),
		Images:    service.NewImageSearchService(cfg.ImageSearch.Endpoint, cfg.SearchTimeout(), decks, emitter, logger),
		Dictation: service.NewDictationService(decks, settings.DictationLocale(cfg.Dictation.Locale), emitter, logger),
		Settings:  settings,
	}, nil
}

// openStorage opens the SQL database. The mongodb driver keeps decks in
// Mongo; revisions, jobs and settings stay in the local sqlite file.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage.DB, *storage.MongoDeckStore, error) {
	sc := cfg.Storage
	server := storage.ServerConfig{
		Host:     sc.Host,
		Port:     sc.Port,
		User:     sc.User,
		Database: sc.Database,
		SSLMode:  sc.SSLMode,
	}
	if sc.Driver != "sqlite" {
		pw, err := secret.Password(secret.Chain{secret.NewEnvStore(), secret.NewKeychainStore()}, sc.PasswordKey)
		if err != nil {
			return nil, nil, err
		}
		server.Password = pw
	}

	switch sc.Driver {
	case "mysql", "postgres":
		db, err := storage.NewServer(sc.Driver, server, cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		logger.Info("storage opened", zap.String("driver", sc.Driver), zap.String("host", sc.Host))
		return db, nil, nil
	}

	path := sc.Path
	if path == "" {
		path = filepath.Join(cfg.DataDir, "slides.db")
	}
	db, err := storage.New(path, cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	if sc.Driver != "mongodb" {
		logger.Info("storage opened", zap.String("driver", "sqlite"), zap.String("path", path))
		return db, nil, nil
	}

	mongoStore, err := storage.NewMongoDeckStore(ctx, server)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	logger.Info("storage opened", zap.String("driver", "mongodb"), zap.String("host", sc.Host), zap.String("sidecar", path))
	return db, mongoStore, nil
}

// Close stops background work and releases storage.
func (s *Services) Close(ctx context.Context) {
	s.Jobs.Stop()
	s.Dictation.Stop(ctx)
	s.Exports.WaitRunning(ctx)
	s.Jobs.WaitRunning(ctx)
	s.Decks.CloseDeck()
	if s.Mongo != nil {
		s.Mongo.Close(ctx)
	}
	s.DB.Close()
}
