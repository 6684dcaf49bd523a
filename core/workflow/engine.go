// Package workflow orchestrates every domain operation on a job: it
// composes precondition checks, state transitions, document creation and
// audit emission into single atomic actions. Callers arrive with an
// already resolved, permission- and scope-checked actor.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"simunet-portal/core/audit"
	"simunet-portal/core/docstore"
	"simunet-portal/core/models"
	"simunet-portal/core/repository"
	"simunet-portal/core/statemachine"

	"github.com/google/uuid"
)

// DefaultStuckAfter is the idle threshold past which a non-terminal job is
// surfaced as stuck.
const DefaultStuckAfter = 180 * time.Minute

// Engine owns all Job, DiaryRecord and FinalPacket mutation. The audit log
// and document store are append-only collaborators it writes to; boundary
// code never touches them directly.
type Engine struct {
	store      repository.Store
	docs       *docstore.Store
	audit      *audit.Log
	locks      *jobLocks
	stuckAfter time.Duration
}

// NewEngine wires an engine over a store. A non-positive stuckAfter falls
// back to DefaultStuckAfter.
func NewEngine(store repository.Store, docs *docstore.Store, auditLog *audit.Log, stuckAfter time.Duration) *Engine {
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckAfter
	}
	return &Engine{
		store:      store,
		docs:       docs,
		audit:      auditLog,
		locks:      newJobLocks(),
		stuckAfter: stuckAfter,
	}
}

// transition applies a checked status change and touches both timestamps.
func transition(job *models.Job, to models.JobStatus) error {
	if err := statemachine.AssertTransition(job.Status, to); err != nil {
		return err
	}
	now := time.Now().UTC()
	job.Status = to
	job.UpdatedAt = now
	job.LastStateChangeAt = now
	return nil
}

// ApproveJob moves a RECEIVED job to APPROVED.
func (e *Engine) ApproveJob(ctx context.Context, jobID string, actor *models.UserProfile) (*models.Job, error) {
	defer e.locks.lock(jobID)()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	prev := job.UpdatedAt
	if err := transition(job, models.JobStatusApproved); err != nil {
		return nil, err
	}
	if err := e.store.UpdateJob(ctx, job, prev); err != nil {
		return nil, err
	}
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventJobApproved, "Job card approved and acknowledged.", nil); err != nil {
		return nil, err
	}
	return job, nil
}

// AssignTechnicians replaces the job's crew with the de-duplicated ids.
// An APPROVED job moves to ASSIGNED; on any other status the crew changes
// without a transition.
func (e *Engine) AssignTechnicians(ctx context.Context, jobID string, techIDs []string, actor *models.UserProfile) (*models.Job, error) {
	defer e.locks.lock(jobID)()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	prev := job.UpdatedAt

	if job.Status == models.JobStatusApproved {
		if err := transition(job, models.JobStatusAssigned); err != nil {
			return nil, err
		}
	} else {
		job.UpdatedAt = time.Now().UTC()
	}

	seen := make(map[string]struct{}, len(techIDs))
	assigned := make([]string, 0, len(techIDs))
	for _, id := range techIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		assigned = append(assigned, id)
	}
	job.AssignedTechIDs = assigned

	if err := e.store.UpdateJob(ctx, job, prev); err != nil {
		return nil, err
	}

	crew := strings.Join(assigned, ", ")
	if crew == "" {
		crew = "none"
	}
	message := fmt.Sprintf("Technicians assigned: %s. Notification queued.", crew)
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventTechAssigned, message, nil); err != nil {
		return nil, err
	}
	return job, nil
}

// SetJobStatus moves a job to the target status. Setting the current
// status is an explicit no-op transition: nothing changes but the action
// is still audited, never silently dropped.
func (e *Engine) SetJobStatus(ctx context.Context, jobID string, target models.JobStatus, actor *models.UserProfile, message string) (*models.Job, error) {
	defer e.locks.lock(jobID)()

	if !statemachine.ValidStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != target {
		prev := job.UpdatedAt
		if err := transition(job, target); err != nil {
			return nil, err
		}
		if err := e.store.UpdateJob(ctx, job, prev); err != nil {
			return nil, err
		}
	}

	if message == "" {
		message = fmt.Sprintf("Status updated to %s.", strings.ToLower(statemachine.Label(target)))
	}
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventStatusChanged, message, nil); err != nil {
		return nil, err
	}
	return job, nil
}

// EvidenceInput carries field evidence. At least one of Note or PhotoName
// must be present.
type EvidenceInput struct {
	Note      string
	PhotoName string
}

// AddEvidence attaches site evidence documents to a job. Uploading against
// an ASSIGNED job implicitly starts the work, moving it to IN_PROGRESS.
func (e *Engine) AddEvidence(ctx context.Context, jobID string, actor *models.UserProfile, in EvidenceInput) (*models.Job, error) {
	defer e.locks.lock(jobID)()

	if in.Note == "" && in.PhotoName == "" {
		return nil, fmt.Errorf("%w: evidence needs a note or a photo", ErrPreconditionFailed)
	}

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == models.JobStatusAssigned {
		prev := job.UpdatedAt
		if err := transition(job, models.JobStatusInProgress); err != nil {
			return nil, err
		}
		if err := e.store.UpdateJob(ctx, job, prev); err != nil {
			return nil, err
		}
	}

	if in.PhotoName != "" {
		_, err := e.docs.Add(ctx, docstore.AddInput{
			JobID:      jobID,
			Type:       models.DocumentTypeSitePhoto,
			Name:       in.PhotoName,
			ObjectPath: fmt.Sprintf("jobs/%s/evidence/%s", jobID, in.PhotoName),
			UploadedBy: actor.ID,
		})
		if err != nil {
			return nil, err
		}
	}
	if in.Note != "" {
		name := fmt.Sprintf("note-%d.txt", time.Now().UnixNano())
		_, err := e.docs.Add(ctx, docstore.AddInput{
			JobID:      jobID,
			Type:       models.DocumentTypeSiteNote,
			Name:       name,
			ObjectPath: fmt.Sprintf("jobs/%s/evidence/%s", jobID, name),
			UploadedBy: actor.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	message := "Evidence uploaded"
	if in.Note != "" {
		message += ": " + in.Note
	}
	metadata := map[string]interface{}{"hasPhoto": in.PhotoName != ""}
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventEvidenceUploaded, message, metadata); err != nil {
		return nil, err
	}
	return job, nil
}

// UpsertDiary replaces the job diary with the next version in DRAFT status.
// A SITE_WORK_COMPLETE job moves to DIARY_PENDING. Reviewer id and comment
// from the prior version are carried into the new draft unchanged.
func (e *Engine) UpsertDiary(ctx context.Context, jobID string, actor *models.UserProfile, content string) (*models.DiaryRecord, error) {
	defer e.locks.lock(jobID)()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == models.JobStatusSiteWorkComplete {
		prev := job.UpdatedAt
		if err := transition(job, models.JobStatusDiaryPending); err != nil {
			return nil, err
		}
		if err := e.store.UpdateJob(ctx, job, prev); err != nil {
			return nil, err
		}
	}

	next := &models.DiaryRecord{
		JobID:        jobID,
		Version:      1,
		Content:      content,
		Status:       models.DiaryStatusDraft,
		LastEditedBy: actor.ID,
		UpdatedAt:    time.Now().UTC(),
	}
	current, err := e.store.GetDiary(ctx, jobID)
	if err == nil {
		next.Version = current.Version + 1
		next.ReviewerID = current.ReviewerID
		next.ReviewerComment = current.ReviewerComment
	} else if !isNotFound(err) {
		return nil, err
	}

	if err := e.store.PutDiary(ctx, next); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Diary updated to version %d.", next.Version)
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventDiaryUpdated, message, nil); err != nil {
		return nil, err
	}
	return next, nil
}

// GenerateDiaryPDF records the immutable PDF document for the current
// diary version and points the diary at it.
func (e *Engine) GenerateDiaryPDF(ctx context.Context, jobID string, actor *models.UserProfile) (*models.JobDocument, error) {
	defer e.locks.lock(jobID)()

	diary, err := e.store.GetDiary(ctx, jobID)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("diary-snippet-v%d.pdf", diary.Version)
	doc, err := e.docs.Add(ctx, docstore.AddInput{
		JobID:      jobID,
		Type:       models.DocumentTypeDiaryPDF,
		Name:       name,
		ObjectPath: fmt.Sprintf("jobs/%s/diary/%s", jobID, name),
		Version:    diary.Version,
		UploadedBy: actor.ID,
	})
	if err != nil {
		return nil, err
	}

	diary.PDFDocumentID = doc.ID
	diary.UpdatedAt = time.Now().UTC()
	if err := e.store.PutDiary(ctx, diary); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Diary PDF generated for version %d.", diary.Version)
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventDiaryUpdated, message, nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// SendDiary sends the diary to the client. The diary must have a generated
// PDF; resending while already DIARY_SENT leaves the job status alone.
func (e *Engine) SendDiary(ctx context.Context, jobID string, actor *models.UserProfile) (*models.DiaryRecord, error) {
	defer e.locks.lock(jobID)()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	diary, err := e.store.GetDiary(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if diary.PDFDocumentID == "" {
		return nil, fmt.Errorf("%w: diary PDF must be generated before sending", ErrPreconditionFailed)
	}

	if job.Status != models.JobStatusDiarySent {
		prev := job.UpdatedAt
		if err := transition(job, models.JobStatusDiarySent); err != nil {
			return nil, err
		}
		if err := e.store.UpdateJob(ctx, job, prev); err != nil {
			return nil, err
		}
	}

	diary.Status = models.DiaryStatusSent
	diary.UpdatedAt = time.Now().UTC()
	if err := e.store.PutDiary(ctx, diary); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Diary version %d sent to client.", diary.Version)
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventDiarySent, message, nil); err != nil {
		return nil, err
	}
	return diary, nil
}

// ReviewDiary records the client verdict. Approval moves the job to
// DIARY_APPROVED; rejection returns it to DIARY_PENDING for another
// drafting cycle. Rejections require a comment.
func (e *Engine) ReviewDiary(ctx context.Context, jobID string, actor *models.UserProfile, decision models.ReviewDecision, comment string) (*models.DiaryRecord, error) {
	defer e.locks.lock(jobID)()

	if decision != models.ReviewApprove && decision != models.ReviewReject {
		return nil, fmt.Errorf("%w: unknown review decision %q", ErrPreconditionFailed, decision)
	}
	comment = strings.TrimSpace(comment)
	if decision == models.ReviewReject && comment == "" {
		return nil, fmt.Errorf("%w: a comment is required when rejecting", ErrPreconditionFailed)
	}

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	diary, err := e.store.GetDiary(ctx, jobID)
	if err != nil {
		return nil, err
	}

	target := models.JobStatusDiaryApproved
	diaryStatus := models.DiaryStatusApproved
	message := "Diary approved by client supervisor."
	if decision == models.ReviewReject {
		target = models.JobStatusDiaryPending
		diaryStatus = models.DiaryStatusRejected
		message = "Diary rejected and returned for edits."
	}

	prev := job.UpdatedAt
	if err := transition(job, target); err != nil {
		return nil, err
	}
	if err := e.store.UpdateJob(ctx, job, prev); err != nil {
		return nil, err
	}

	diary.Status = diaryStatus
	diary.ReviewerID = actor.ID
	diary.ReviewerComment = comment
	diary.UpdatedAt = time.Now().UTC()
	if err := e.store.PutDiary(ctx, diary); err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{"comment": comment}
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventDiaryReviewed, message, metadata); err != nil {
		return nil, err
	}
	return diary, nil
}

// GenerateFinalPacket bundles the completion documentation. It is only
// legal in DIARY_APPROVED; regeneration overwrites the packet projection
// and adds fresh document rows.
func (e *Engine) GenerateFinalPacket(ctx context.Context, jobID string, actor *models.UserProfile) (*models.FinalPacket, error) {
	defer e.locks.lock(jobID)()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusDiaryApproved {
		return nil, fmt.Errorf("%w: final packet can only be generated after diary approval", ErrPreconditionFailed)
	}

	for _, docType := range []models.DocumentType{
		models.DocumentTypeInvoice,
		models.DocumentTypeCompletionCertificate,
	} {
		name := fmt.Sprintf("%s-%s.pdf", strings.ToLower(strings.ReplaceAll(string(docType), "_", "-")), jobID)
		_, err := e.docs.Add(ctx, docstore.AddInput{
			JobID:      jobID,
			Type:       docType,
			Name:       name,
			ObjectPath: fmt.Sprintf("jobs/%s/packet/%s", jobID, name),
			UploadedBy: actor.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	packetName := fmt.Sprintf("final-packet-%s.pdf", jobID)
	packetDoc, err := e.docs.Add(ctx, docstore.AddInput{
		JobID:      jobID,
		Type:       models.DocumentTypeFinalPacket,
		Name:       packetName,
		ObjectPath: fmt.Sprintf("jobs/%s/packet/%s", jobID, packetName),
		UploadedBy: actor.ID,
	})
	if err != nil {
		return nil, err
	}

	prev := job.UpdatedAt
	if err := transition(job, models.JobStatusPacketGenerated); err != nil {
		return nil, err
	}
	if err := e.store.UpdateJob(ctx, job, prev); err != nil {
		return nil, err
	}

	packet := &models.FinalPacket{
		JobID:            jobID,
		PacketDocumentID: packetDoc.ID,
		GeneratedAt:      time.Now().UTC(),
		GeneratedBy:      actor.ID,
	}
	if err := e.store.PutPacket(ctx, packet); err != nil {
		return nil, err
	}

	if _, err := e.audit.Append(ctx, jobID, actor, models.EventPacketGenerated, "Final packet generated and archived.", nil); err != nil {
		return nil, err
	}
	return packet, nil
}

// SubmitFinalPacket marks the generated packet as delivered and moves the
// job to SUBMITTED.
func (e *Engine) SubmitFinalPacket(ctx context.Context, jobID string, actor *models.UserProfile) (*models.Job, error) {
	defer e.locks.lock(jobID)()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	prev := job.UpdatedAt
	if err := transition(job, models.JobStatusSubmitted); err != nil {
		return nil, err
	}
	if err := e.store.UpdateJob(ctx, job, prev); err != nil {
		return nil, err
	}

	packet, err := e.store.GetPacket(ctx, jobID)
	if err == nil {
		now := time.Now().UTC()
		packet.SubmittedAt = &now
		if err := e.store.PutPacket(ctx, packet); err != nil {
			return nil, err
		}
	} else if !isNotFound(err) {
		return nil, err
	}

	if _, err := e.audit.Append(ctx, jobID, actor, models.EventPacketSubmitted, "Final packet submitted to client supervisor, authorities, and finance.", nil); err != nil {
		return nil, err
	}
	return job, nil
}

// ArchiveJob moves a SUBMITTED job into the terminal ARCHIVED state.
func (e *Engine) ArchiveJob(ctx context.Context, jobID string, actor *models.UserProfile) (*models.Job, error) {
	defer e.locks.lock(jobID)()

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	prev := job.UpdatedAt
	if err := transition(job, models.JobStatusArchived); err != nil {
		return nil, err
	}
	if err := e.store.UpdateJob(ctx, job, prev); err != nil {
		return nil, err
	}

	if _, err := e.audit.Append(ctx, jobID, actor, models.EventJobArchived, "Job and documents archived for long-term retention.", nil); err != nil {
		return nil, err
	}
	return job, nil
}

// RecordIntake stores an incoming Teams message for later conversion.
func (e *Engine) RecordIntake(ctx context.Context, msg *models.IntakeMessage) (*models.IntakeMessage, error) {
	if msg.ID == "" {
		msg.ID = "MSG-" + uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	if err := e.store.SaveIntakeMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateJobFromIntake converts an intake message into a RECEIVED job with
// its source documents attached. Converting an already-processed message
// returns the existing job.
func (e *Engine) CreateJobFromIntake(ctx context.Context, messageID string, actor *models.UserProfile) (*models.Job, error) {
	msg, err := e.store.GetIntakeMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ProcessedJobID != "" {
		return e.store.GetJob(ctx, msg.ProcessedJobID)
	}

	now := time.Now().UTC()
	jobID, err := e.store.NextJobID(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:                jobID,
		Type:              msg.Type,
		SiteName:          msg.SiteName,
		ClientReference:   fmt.Sprintf("TEL-%05d", 60000+rand.Intn(10000)),
		Description:       msg.Description,
		RequiredMaterials: append([]string(nil), msg.Materials...),
		Status:            models.JobStatusReceived,
		AssignedTechIDs:   []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
		LastStateChangeAt: now,
	}
	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := e.store.MarkIntakeProcessed(ctx, msg.ID, jobID); err != nil {
		return nil, err
	}

	sourceType := models.DocumentTypeJobCard
	if msg.Type == models.JobTypeSmallWorks {
		sourceType = models.DocumentTypeJobOffer
	}
	sourceName := fmt.Sprintf("job-source-%s.pdf", msg.ID)
	if len(msg.Attachments) > 0 {
		sourceName = msg.Attachments[0]
	}
	if _, err := e.docs.Add(ctx, docstore.AddInput{
		JobID:      jobID,
		Type:       sourceType,
		Name:       sourceName,
		ObjectPath: fmt.Sprintf("jobs/%s/source/%s", jobID, sourceName),
		UploadedBy: actor.ID,
	}); err != nil {
		return nil, err
	}

	if msg.MapIncluded {
		mapName := "route-map.pdf"
		for _, attachment := range msg.Attachments {
			if strings.Contains(attachment, "map") {
				mapName = attachment
				break
			}
		}
		if _, err := e.docs.Add(ctx, docstore.AddInput{
			JobID:      jobID,
			Type:       models.DocumentTypeMapRoute,
			Name:       mapName,
			ObjectPath: fmt.Sprintf("jobs/%s/source/%s", jobID, mapName),
			UploadedBy: actor.ID,
		}); err != nil {
			return nil, err
		}
	}

	message := fmt.Sprintf("Job created from Teams message %s", msg.ID)
	if _, err := e.audit.Append(ctx, jobID, actor, models.EventJobReceived, message, nil); err != nil {
		return nil, err
	}
	return job, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
