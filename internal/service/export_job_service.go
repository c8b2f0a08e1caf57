package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"slides/internal/domain"
	"slides/internal/export"
)

// ─────────────────────────────────────────────────────────────
// Export Job Service — saved exports, cron schedules, autosave
// ─────────────────────────────────────────────────────────────

const jobRunTimeout = 5 * time.Minute

// ExportJobService manages saved export jobs and owns the cron scheduler
// that runs them next to the autosave.
type ExportJobService struct {
	store    domain.ExportJobStore
	exports  *ExportService
	decks    *DeckService
	emitter  EventEmitter
	logger   *zap.Logger
	autosave string

	runningJobs runningJobsGuard

	mu        sync.Mutex
	cronSched *cron.Cron
}

// NewExportJobService creates the service. autosave is a cron expression;
// empty disables autosave.
func NewExportJobService(
	store domain.ExportJobStore,
	exports *ExportService,
	decks *DeckService,
	autosave string,
	emitter EventEmitter,
	logger *zap.Logger,
) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportJobService{
		store:    store,
		exports:  exports,
		decks:    decks,
		emitter:  emitter,
		logger:   logger,
		autosave: autosave,
	}
}

// ── Job CRUD ───────────────────────────────────────────────

type CreateExportJobInput struct {
	DeckID     string `json:"deckId"`
	Format     string `json:"format"`
	OutputPath string `json:"outputPath"`
	Schedule   string `json:"schedule"`
	Enabled    bool   `json:"enabled"`
}

func (in CreateExportJobInput) validate() error {
	if in.DeckID == "" {
		return fmt.Errorf("deck id is required")
	}
	if _, err := export.Get(in.Format); err != nil {
		return err
	}
	if strings.TrimSpace(in.OutputPath) == "" {
		return fmt.Errorf("output path is required")
	}
	if in.Schedule != "" {
		if _, err := cron.ParseStandard(in.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", in.Schedule, err)
		}
	}
	return nil
}

func (s *ExportJobService) CreateJob(ctx context.Context, input CreateExportJobInput) (*domain.ExportJob, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	job := &domain.ExportJob{
		DeckID:     input.DeckID,
		Format:     input.Format,
		OutputPath: input.OutputPath,
		Schedule:   input.Schedule,
		Enabled:    input.Enabled,
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	s.restartIfRunning(ctx)
	return job, nil
}

func (s *ExportJobService) GetJob(id string) (*domain.ExportJob, error) {
	return s.store.GetJob(id)
}

func (s *ExportJobService) ListJobs() ([]domain.ExportJob, error) {
	return s.store.ListJobs()
}

// SetJobEnabled turns a job's schedule on or off.
func (s *ExportJobService) SetJobEnabled(ctx context.Context, id string, enabled bool) error {
	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	job.Enabled = enabled
	if err := s.store.UpdateJob(job); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	s.restartIfRunning(ctx)
	return nil
}

func (s *ExportJobService) DeleteJob(ctx context.Context, id string) error {
	if err := s.store.DeleteJob(id); err != nil {
		return err
	}
	s.restartIfRunning(ctx)
	return nil
}

// ── Run ────────────────────────────────────────────────────

// RunJob exports the job's deck to its output path and records the outcome
// on the job.
func (s *ExportJobService) RunJob(ctx context.Context, id string) (*domain.ExportJob, error) {
	if !s.runningJobs.TryLock(id) {
		return nil, fmt.Errorf("job %s is already running", id)
	}
	defer s.runningJobs.Unlock(id)

	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, jobRunTimeout)
	defer cancel()

	runErr := s.exports.ExportDeck(runCtx, job.DeckID, job.Format, job.OutputPath)

	now := time.Now().UTC()
	job.LastRunAt = &now
	job.LastError = ""
	if runErr != nil {
		job.LastError = runErr.Error()
	}
	if err := s.store.UpdateJob(job); err != nil {
		s.logger.Error("record export job run failed", zap.String("job", id), zap.Error(err))
	}

	s.emitter.Emit(ctx, EventExportJobCompleted, map[string]string{
		"jobId":  id,
		"deckId": job.DeckID,
		"error":  job.LastError,
	})
	return job, runErr
}

// ── Scheduler ──────────────────────────────────────────────

// Start builds the cron scheduler from the enabled scheduled jobs and the
// autosave entry. Calling it again rebuilds the scheduler.
func (s *ExportJobService) Start(ctx context.Context) error {
	jobs, err := s.store.ListScheduledJobs()
	if err != nil {
		return fmt.Errorf("list scheduled jobs: %w", err)
	}

	c := cron.New()
	for _, j := range jobs {
		jid := j.ID
		if _, err := c.AddFunc(j.Schedule, func() {
			s.logger.Debug("export cron: running job", zap.String("job", jid))
			if _, err := s.RunJob(context.Background(), jid); err != nil {
				s.logger.Warn("export cron: job failed", zap.String("job", jid), zap.Error(err))
			}
		}); err != nil {
			s.logger.Warn("export cron: invalid schedule",
				zap.String("job", jid), zap.String("schedule", j.Schedule), zap.Error(err))
		}
	}

	if s.autosave != "" {
		if _, err := c.AddFunc(s.autosave, s.runAutosave); err != nil {
			s.logger.Warn("autosave: invalid schedule", zap.String("schedule", s.autosave), zap.Error(err))
		}
	}

	s.mu.Lock()
	old := s.cronSched
	s.cronSched = c
	s.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	c.Start()

	s.logger.Info("export cron: scheduled", zap.Int("jobs", len(jobs)), zap.Bool("autosave", s.autosave != ""))
	return nil
}

func (s *ExportJobService) runAutosave() {
	saved, err := s.decks.SaveIfDirty(context.Background())
	switch {
	case err != nil:
		s.logger.Warn("autosave failed", zap.Error(err))
	case saved:
		s.logger.Debug("autosave: deck saved", zap.String("deck", s.decks.OpenDeckID()))
	}
}

func (s *ExportJobService) restartIfRunning(ctx context.Context) {
	s.mu.Lock()
	running := s.cronSched != nil
	s.mu.Unlock()
	if !running {
		return
	}
	if err := s.Start(ctx); err != nil {
		s.logger.Warn("export cron: restart failed", zap.Error(err))
	}
}

// Running reports whether the scheduler is active.
func (s *ExportJobService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cronSched != nil
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
func (s *ExportJobService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down the scheduler. Jobs already running are left to finish.
func (s *ExportJobService) Stop() {
	s.mu.Lock()
	c := s.cronSched
	s.cronSched = nil
	s.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}
