package workflow

import (
	"context"
	"sort"
	"time"

	"simunet-portal/core/models"
	"simunet-portal/core/statemachine"
)

// GetJob fetches a single job.
func (e *Engine) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// ListJobs returns jobs matching the filters, ordered by lifecycle rank
// then id.
func (e *Engine) ListJobs(ctx context.Context, filters models.JobFilters) ([]*models.Job, error) {
	jobs, err := e.store.ListJobs(ctx, filters)
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool {
		ri, rj := statemachine.Rank(jobs[i].Status), statemachine.Rank(jobs[j].Status)
		if ri != rj {
			return ri < rj
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

// GetWorkspace assembles the full read model for a job: the job itself,
// its ordered event trail, documents, diary and packet.
func (e *Engine) GetWorkspace(ctx context.Context, jobID string) (*models.JobWorkspace, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	events, err := e.audit.List(ctx, jobID)
	if err != nil {
		return nil, err
	}
	documents, err := e.docs.List(ctx, jobID)
	if err != nil {
		return nil, err
	}
	sort.Slice(documents, func(i, j int) bool {
		if documents[i].Version != documents[j].Version {
			return documents[i].Version > documents[j].Version
		}
		return documents[i].Type < documents[j].Type
	})

	workspace := &models.JobWorkspace{
		Job:       job,
		Events:    events,
		Documents: documents,
	}
	if diary, err := e.store.GetDiary(ctx, jobID); err == nil {
		workspace.Diary = diary
	} else if !isNotFound(err) {
		return nil, err
	}
	if packet, err := e.store.GetPacket(ctx, jobID); err == nil {
		workspace.Packet = packet
	} else if !isNotFound(err) {
		return nil, err
	}
	return workspace, nil
}

// ListJobDocuments returns a job's documents, newest upload first.
func (e *Engine) ListJobDocuments(ctx context.Context, jobID string) ([]models.JobDocument, error) {
	if _, err := e.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	documents, err := e.docs.List(ctx, jobID)
	if err != nil {
		return nil, err
	}
	sort.Slice(documents, func(i, j int) bool {
		return documents[i].UploadedAt.After(documents[j].UploadedAt)
	})
	return documents, nil
}

// ListPendingDiaryApprovals returns every diary sitting in SENT status
// with its job, most recently updated first.
func (e *Engine) ListPendingDiaryApprovals(ctx context.Context) ([]models.PendingDiaryApproval, error) {
	diaries, err := e.store.ListDiariesByStatus(ctx, models.DiaryStatusSent)
	if err != nil {
		return nil, err
	}
	var pending []models.PendingDiaryApproval
	for _, diary := range diaries {
		job, err := e.store.GetJob(ctx, diary.JobID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		pending = append(pending, models.PendingDiaryApproval{Job: job, Diary: diary})
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Diary.UpdatedAt.After(pending[j].Diary.UpdatedAt)
	})
	return pending, nil
}

// SearchArchive returns completed jobs matching the filters, most
// recently updated first.
func (e *Engine) SearchArchive(ctx context.Context, filters models.ArchiveFilters) ([]*models.Job, error) {
	jobs, err := e.store.SearchArchive(ctx, filters)
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt)
	})
	return jobs, nil
}

// PipelineCounts returns the number of jobs in every lifecycle stage,
// including zeroes for empty stages.
func (e *Engine) PipelineCounts(ctx context.Context) (map[models.JobStatus]int, error) {
	counts, err := e.store.CountJobsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, status := range statemachine.Statuses() {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

// ListStuckJobs returns non-terminal jobs idle past the configured
// threshold, longest-idle first. Purely observational; never mutates.
func (e *Engine) ListStuckJobs(ctx context.Context) ([]*models.Job, error) {
	jobs, err := e.store.ListJobs(ctx, models.JobFilters{})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var stuck []*models.Job
	for _, job := range jobs {
		if job.Status == models.JobStatusArchived || job.Status == models.JobStatusSubmitted {
			continue
		}
		if now.Sub(job.LastStateChangeAt) >= e.stuckAfter {
			stuck = append(stuck, job)
		}
	}
	sort.Slice(stuck, func(i, j int) bool {
		return stuck[i].LastStateChangeAt.Before(stuck[j].LastStateChangeAt)
	})
	return stuck, nil
}

// ListIntake returns unprocessed intake messages, newest first.
func (e *Engine) ListIntake(ctx context.Context) ([]*models.IntakeMessage, error) {
	msgs, err := e.store.ListUnprocessedIntake(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt.After(msgs[j].ReceivedAt)
	})
	return msgs, nil
}
