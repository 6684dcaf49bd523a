package repository

import (
	"context"
	"errors"
	"time"

	"simunet-portal/core/models"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an update's expected timestamp no longer
	// matches the stored row, meaning another actor committed first.
	ErrConflict = errors.New("concurrent modification")
)

// Store is the persistence boundary for the workflow engine. Implementations
// must make UpdateJob a compare-and-swap on the job's updatedAt, and must
// assign per-job, gapless event sequence numbers in AppendEvent.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job, expectedUpdatedAt time.Time) error
	ListJobs(ctx context.Context, filters models.JobFilters) ([]*models.Job, error)
	SearchArchive(ctx context.Context, filters models.ArchiveFilters) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error)
	NextJobID(ctx context.Context, year int) (string, error)

	GetDiary(ctx context.Context, jobID string) (*models.DiaryRecord, error)
	PutDiary(ctx context.Context, diary *models.DiaryRecord) error
	ListDiariesByStatus(ctx context.Context, status models.DiaryStatus) ([]*models.DiaryRecord, error)

	AddDocument(ctx context.Context, doc *models.JobDocument) error
	GetDocument(ctx context.Context, id string) (*models.JobDocument, error)
	ListDocuments(ctx context.Context, jobID string) ([]models.JobDocument, error)

	AppendEvent(ctx context.Context, event *models.JobEvent) error
	ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error)

	GetPacket(ctx context.Context, jobID string) (*models.FinalPacket, error)
	PutPacket(ctx context.Context, packet *models.FinalPacket) error

	SaveIntakeMessage(ctx context.Context, msg *models.IntakeMessage) error
	GetIntakeMessage(ctx context.Context, id string) (*models.IntakeMessage, error)
	ListUnprocessedIntake(ctx context.Context) ([]*models.IntakeMessage, error)
	MarkIntakeProcessed(ctx context.Context, id, jobID string) error

	Close() error
}
