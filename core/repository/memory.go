package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"simunet-portal/core/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It backs tests and the default
// zero-configuration deployment; all reads return copies so callers can
// never alias stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*models.Job
	diaries   map[string]*models.DiaryRecord
	documents map[string]*models.JobDocument
	docOrder  []string
	events    map[string][]models.JobEvent
	packets   map[string]*models.FinalPacket
	intake    map[string]*models.IntakeMessage
	intakeIDs []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*models.Job),
		diaries:   make(map[string]*models.DiaryRecord),
		documents: make(map[string]*models.JobDocument),
		events:    make(map[string][]models.JobEvent),
		packets:   make(map[string]*models.FinalPacket),
		intake:    make(map[string]*models.IntakeMessage),
	}
}

func copyJob(job *models.Job) *models.Job {
	out := *job
	out.RequiredMaterials = append([]string(nil), job.RequiredMaterials...)
	out.AssignedTechIDs = append([]string(nil), job.AssignedTechIDs...)
	return &out
}

func copyDiary(diary *models.DiaryRecord) *models.DiaryRecord {
	out := *diary
	return &out
}

func copyPacket(packet *models.FinalPacket) *models.FinalPacket {
	out := *packet
	if packet.SubmittedAt != nil {
		t := *packet.SubmittedAt
		out.SubmittedAt = &t
	}
	return &out
}

func copyIntake(msg *models.IntakeMessage) *models.IntakeMessage {
	out := *msg
	out.Materials = append([]string(nil), msg.Materials...)
	out.Attachments = append([]string(nil), msg.Attachments...)
	return &out
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: job %s already exists", ErrConflict, job.ID)
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return copyJob(job), nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, job *models.Job, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("%w: job %s", ErrNotFound, job.ID)
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return fmt.Errorf("%w: job %s moved since read", ErrConflict, job.ID)
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, filters models.JobFilters) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if JobMatches(job, filters) {
			out = append(out, copyJob(job))
		}
	}
	return out, nil
}

func (s *MemoryStore) SearchArchive(ctx context.Context, filters models.ArchiveFilters) ([]*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if ArchiveMatches(job, filters) {
			out = append(out, copyJob(job))
		}
	}
	return out, nil
}

func (s *MemoryStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) NextJobID(ctx context.Context, year int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := fmt.Sprintf("JOB-%d-", year)
	highest := 0
	for id := range s.jobs {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, highest+1), nil
}

func (s *MemoryStore) GetDiary(ctx context.Context, jobID string) (*models.DiaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diary, ok := s.diaries[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: diary for job %s", ErrNotFound, jobID)
	}
	return copyDiary(diary), nil
}

func (s *MemoryStore) PutDiary(ctx context.Context, diary *models.DiaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diaries[diary.JobID] = copyDiary(diary)
	return nil
}

func (s *MemoryStore) ListDiariesByStatus(ctx context.Context, status models.DiaryStatus) ([]*models.DiaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DiaryRecord
	for _, diary := range s.diaries {
		if diary.Status == status {
			out = append(out, copyDiary(diary))
		}
	}
	return out, nil
}

func (s *MemoryStore) AddDocument(ctx context.Context, doc *models.JobDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("%w: document %s already exists", ErrConflict, doc.ID)
	}
	stored := *doc
	s.documents[doc.ID] = &stored
	s.docOrder = append(s.docOrder, doc.ID)
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*models.JobDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	out := *doc
	return &out, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, jobID string) ([]models.JobDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.JobDocument
	for _, id := range s.docOrder {
		if doc := s.documents[id]; doc.JobID == jobID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event *models.JobEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *event
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Seq = 1
	if existing := s.events[event.JobID]; len(existing) > 0 {
		stored.Seq = existing[len(existing)-1].Seq + 1
	}
	s.events[event.JobID] = append(s.events[event.JobID], stored)
	event.ID = stored.ID
	event.Seq = stored.Seq
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.JobEvent(nil), s.events[jobID]...), nil
}

func (s *MemoryStore) GetPacket(ctx context.Context, jobID string) (*models.FinalPacket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	packet, ok := s.packets[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: packet for job %s", ErrNotFound, jobID)
	}
	return copyPacket(packet), nil
}

func (s *MemoryStore) PutPacket(ctx context.Context, packet *models.FinalPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets[packet.JobID] = copyPacket(packet)
	return nil
}

func (s *MemoryStore) SaveIntakeMessage(ctx context.Context, msg *models.IntakeMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intake[msg.ID]; !ok {
		s.intakeIDs = append(s.intakeIDs, msg.ID)
	}
	s.intake[msg.ID] = copyIntake(msg)
	return nil
}

func (s *MemoryStore) GetIntakeMessage(ctx context.Context, id string) (*models.IntakeMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.intake[id]
	if !ok {
		return nil, fmt.Errorf("%w: intake message %s", ErrNotFound, id)
	}
	return copyIntake(msg), nil
}

func (s *MemoryStore) ListUnprocessedIntake(ctx context.Context) ([]*models.IntakeMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.IntakeMessage
	for _, id := range s.intakeIDs {
		if msg := s.intake[id]; msg.ProcessedJobID == "" {
			out = append(out, copyIntake(msg))
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkIntakeProcessed(ctx context.Context, id, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.intake[id]
	if !ok {
		return fmt.Errorf("%w: intake message %s", ErrNotFound, id)
	}
	msg.ProcessedJobID = jobID
	return nil
}

func (s *MemoryStore) Close() error { return nil }
