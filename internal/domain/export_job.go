package domain

import "time"

// ExportJob re-exports a saved deck to a fixed path, on demand or on a
// cron schedule.
type ExportJob struct {
	ID         string     `json:"id"`
	DeckID     string     `json:"deckId"`
	Format     string     `json:"format"`
	OutputPath string     `json:"outputPath"`
	Schedule   string     `json:"schedule"` // cron expression, empty = manual only
	Enabled    bool       `json:"enabled"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	LastError  string     `json:"lastError"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type ExportJobStore interface {
	CreateJob(j *ExportJob) error
	GetJob(id string) (*ExportJob, error)
	ListJobs() ([]ExportJob, error)
	ListScheduledJobs() ([]ExportJob, error)
	UpdateJob(j *ExportJob) error
	DeleteJob(id string) error
}
