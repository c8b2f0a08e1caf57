package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slides/internal/domain"
)

// ExportJobStore persists scheduled and on-demand export jobs.
type ExportJobStore struct {
	db *DB
}

func NewExportJobStore(db *DB) *ExportJobStore {
	return &ExportJobStore{db: db}
}

var _ domain.ExportJobStore = (*ExportJobStore)(nil)

const exportJobColumns = `id, deck_id, format, output_path, schedule, enabled,
	last_run_at, last_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExportJob(r rowScanner) (domain.ExportJob, error) {
	var (
		j       domain.ExportJob
		lastRun sql.NullTime
	)
	err := r.Scan(
		&j.ID, &j.DeckID, &j.Format, &j.OutputPath, &j.Schedule, &j.Enabled,
		&lastRun, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	if lastRun.Valid {
		t := lastRun.Time
		j.LastRunAt = &t
	}
	return j, err
}

func (s *ExportJobStore) CreateJob(j *domain.ExportJob) error {
	now := time.Now().UTC()
	j.ID = uuid.New().String()
	j.CreatedAt = now
	j.UpdatedAt = now

	_, err := s.db.exec(
		`INSERT INTO export_jobs (id, deck_id, format, output_path, schedule, enabled,
		 last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.DeckID, j.Format, j.OutputPath, j.Schedule, j.Enabled,
		j.LastError, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

func (s *ExportJobStore) GetJob(id string) (*domain.ExportJob, error) {
	j, err := scanExportJob(s.db.queryRow(`SELECT `+exportJobColumns+` FROM export_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get export job: %w", err)
	}
	return &j, nil
}

func (s *ExportJobStore) ListJobs() ([]domain.ExportJob, error) {
	return s.list(`SELECT ` + exportJobColumns + ` FROM export_jobs ORDER BY created_at ASC`)
}

// ListScheduledJobs returns enabled jobs that carry a cron schedule.
func (s *ExportJobStore) ListScheduledJobs() ([]domain.ExportJob, error) {
	return s.list(
		`SELECT `+exportJobColumns+` FROM export_jobs
		 WHERE enabled = ? AND schedule <> '' ORDER BY created_at ASC`, true,
	)
}

func (s *ExportJobStore) list(query string, args ...any) ([]domain.ExportJob, error) {
	rows, err := s.db.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ExportJob{}
	for rows.Next() {
		j, err := scanExportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *ExportJobStore) UpdateJob(j *domain.ExportJob) error {
	j.UpdatedAt = time.Now().UTC()
	var lastRun sql.NullTime
	if j.LastRunAt != nil {
		lastRun = sql.NullTime{Time: *j.LastRunAt, Valid: true}
	}
	_, err := s.db.exec(
		`UPDATE export_jobs SET deck_id=?, format=?, output_path=?, schedule=?, enabled=?,
		 last_run_at=?, last_error=?, updated_at=? WHERE id=?`,
		j.DeckID, j.Format, j.OutputPath, j.Schedule, j.Enabled,
		lastRun, j.LastError, j.UpdatedAt, j.ID,
	)
	return err
}

func (s *ExportJobStore) DeleteJob(id string) error {
	_, err := s.db.exec(`DELETE FROM export_jobs WHERE id = ?`, id)
	return err
}
