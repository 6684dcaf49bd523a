// Package docstore records content-addressed, versioned artifact metadata
// attached to jobs. The bytes themselves live with an external collaborator;
// the portal keeps name, path reference, hash, version, uploader and time.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"simunet-portal/core/models"
	"simunet-portal/core/repository"

	"github.com/google/uuid"
)

// Store creates and reads immutable document records.
type Store struct {
	repo repository.Store
}

// NewStore creates a document store over the given repository.
func NewStore(repo repository.Store) *Store {
	return &Store{repo: repo}
}

// AddInput describes a new document record. Version defaults to 1.
type AddInput struct {
	JobID      string
	Type       models.DocumentType
	Name       string
	ObjectPath string
	Version    int
	UploadedBy string
}

// Add creates a new immutable document row. A logical replacement of an
// earlier document is still a new row with its own id and hash.
func (s *Store) Add(ctx context.Context, in AddInput) (*models.JobDocument, error) {
	now := time.Now().UTC()
	version := in.Version
	if version == 0 {
		version = 1
	}
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%d", in.JobID, in.Type, in.Name, now.UnixNano())))
	doc := &models.JobDocument{
		ID:         "DOC-" + uuid.NewString(),
		JobID:      in.JobID,
		Type:       in.Type,
		Name:       in.Name,
		ObjectPath: in.ObjectPath,
		SHA256:     hex.EncodeToString(digest[:]),
		Version:    version,
		UploadedBy: in.UploadedBy,
		UploadedAt: now,
	}
	if err := s.repo.AddDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get fetches one document record by id.
func (s *Store) Get(ctx context.Context, id string) (*models.JobDocument, error) {
	return s.repo.GetDocument(ctx, id)
}

// List returns every document attached to a job, oldest first.
func (s *Store) List(ctx context.Context, jobID string) ([]models.JobDocument, error) {
	return s.repo.ListDocuments(ctx, jobID)
}
