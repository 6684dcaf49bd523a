// Package audit is the append-only activity ledger. Entries are written by
// the workflow engine only and are never mutated or deleted; the per-job
// sequence assigned by the store is the canonical ordering.
package audit

import (
	"context"
	"time"

	"simunet-portal/core/models"
	"simunet-portal/core/repository"

	"github.com/google/uuid"
)

// Log appends and reads job events through the repository.
type Log struct {
	store repository.Store
}

// NewLog creates an audit log over the given store.
func NewLog(store repository.Store) *Log {
	return &Log{store: store}
}

// Append records one action on a job. The store assigns the per-job
// sequence number.
func (l *Log) Append(ctx context.Context, jobID string, actor *models.UserProfile, eventType models.EventType, message string, metadata map[string]interface{}) (*models.JobEvent, error) {
	event := &models.JobEvent{
		ID:        uuid.NewString(),
		JobID:     jobID,
		Type:      eventType,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Message:   message,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	if err := l.store.AppendEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// List returns a job's events in sequence order.
func (l *Log) List(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	return l.store.ListEvents(ctx, jobID)
}
