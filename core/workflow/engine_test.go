package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"simunet-portal/core/audit"
	"simunet-portal/core/docstore"
	"simunet-portal/core/models"
	"simunet-portal/core/repository"
)

var (
	adminActor = &models.UserProfile{ID: "admin-1", Name: "Dato", Role: models.RoleAdmin}
	techActor  = &models.UserProfile{ID: "tech-1", Name: "Luka", Role: models.RoleTech}
	clientCtrl = &models.UserProfile{ID: "client-1", Name: "Nino", Role: models.RoleClient}
)

func newTestEngine(t *testing.T) (*Engine, repository.Store) {
	t.Helper()
	store := repository.NewMemoryStore()
	engine := NewEngine(store, docstore.NewStore(store), audit.NewLog(store), 0)
	return engine, store
}

func seedJob(t *testing.T, store repository.Store, id string, status models.JobStatus) *models.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &models.Job{
		ID:                id,
		Type:              models.JobTypeMaintenance,
		SiteName:          "Hilltop Mast 12",
		ClientReference:   "TEL-61234",
		Status:            status,
		AssignedTechIDs:   []string{"tech-1"},
		CreatedAt:         now,
		UpdatedAt:         now,
		LastStateChangeAt: now,
	}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func seedSentDiary(t *testing.T, engine *Engine, jobID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := engine.UpsertDiary(ctx, jobID, techActor, "work done"); err != nil {
		t.Fatalf("UpsertDiary: %v", err)
	}
	if _, err := engine.GenerateDiaryPDF(ctx, jobID, techActor); err != nil {
		t.Fatalf("GenerateDiaryPDF: %v", err)
	}
	if _, err := engine.SendDiary(ctx, jobID, techActor); err != nil {
		t.Fatalf("SendDiary: %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	msg, err := engine.RecordIntake(ctx, &models.IntakeMessage{
		SourceChannel: "teams",
		SiteName:      "Hilltop Mast 12",
		Type:          models.JobTypeMaintenance,
		Description:   "Replace feeder cable",
		Materials:     []string{"feeder 7/8", "connectors"},
		MapIncluded:   true,
		Attachments:   []string{"job-card.pdf", "site-map.pdf"},
	})
	if err != nil {
		t.Fatalf("RecordIntake: %v", err)
	}

	job, err := engine.CreateJobFromIntake(ctx, msg.ID, adminActor)
	if err != nil {
		t.Fatalf("CreateJobFromIntake: %v", err)
	}
	if job.Status != models.JobStatusReceived {
		t.Fatalf("new job status = %s", job.Status)
	}
	if !strings.HasPrefix(job.ID, "JOB-") {
		t.Fatalf("job id = %q", job.ID)
	}

	// Source document plus route map must be attached at creation.
	docs, err := engine.ListJobDocuments(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListJobDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents after intake, want 2", len(docs))
	}

	if job, err = engine.ApproveJob(ctx, job.ID, adminActor); err != nil {
		t.Fatalf("ApproveJob: %v", err)
	}
	if job.Status != models.JobStatusApproved {
		t.Fatalf("status after approve = %s", job.Status)
	}

	job, err = engine.AssignTechnicians(ctx, job.ID, []string{"tech-1", "tech-2", "tech-1"}, adminActor)
	if err != nil {
		t.Fatalf("AssignTechnicians: %v", err)
	}
	if job.Status != models.JobStatusAssigned {
		t.Fatalf("status after assign = %s", job.Status)
	}
	if len(job.AssignedTechIDs) != 2 {
		t.Fatalf("crew not de-duplicated: %v", job.AssignedTechIDs)
	}

	// Evidence against an ASSIGNED job implicitly starts the work.
	job, err = engine.AddEvidence(ctx, job.ID, techActor, EvidenceInput{Note: "on site", PhotoName: "mast.jpg"})
	if err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if job.Status != models.JobStatusInProgress {
		t.Fatalf("status after evidence = %s", job.Status)
	}

	if job, err = engine.SetJobStatus(ctx, job.ID, models.JobStatusSiteWorkComplete, techActor, ""); err != nil {
		t.Fatalf("SetJobStatus: %v", err)
	}

	diary, err := engine.UpsertDiary(ctx, job.ID, techActor, "Feeder replaced, VSWR checked.")
	if err != nil {
		t.Fatalf("UpsertDiary: %v", err)
	}
	if diary.Version != 1 || diary.Status != models.DiaryStatusDraft {
		t.Fatalf("diary = %+v", diary)
	}
	if job, err = engine.GetJob(ctx, job.ID); err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != models.JobStatusDiaryPending {
		t.Fatalf("status after first draft = %s", job.Status)
	}

	pdfDoc, err := engine.GenerateDiaryPDF(ctx, job.ID, techActor)
	if err != nil {
		t.Fatalf("GenerateDiaryPDF: %v", err)
	}
	if pdfDoc.Type != models.DocumentTypeDiaryPDF {
		t.Fatalf("pdf doc type = %s", pdfDoc.Type)
	}

	diary, err = engine.SendDiary(ctx, job.ID, adminActor)
	if err != nil {
		t.Fatalf("SendDiary: %v", err)
	}
	if diary.Status != models.DiaryStatusSent {
		t.Fatalf("diary status after send = %s", diary.Status)
	}

	diary, err = engine.ReviewDiary(ctx, job.ID, clientCtrl, models.ReviewApprove, "looks good")
	if err != nil {
		t.Fatalf("ReviewDiary: %v", err)
	}
	if diary.Status != models.DiaryStatusApproved {
		t.Fatalf("diary status after approve = %s", diary.Status)
	}

	packet, err := engine.GenerateFinalPacket(ctx, job.ID, adminActor)
	if err != nil {
		t.Fatalf("GenerateFinalPacket: %v", err)
	}
	if packet.PacketDocumentID == "" {
		t.Fatal("packet missing document id")
	}

	if job, err = engine.SubmitFinalPacket(ctx, job.ID, adminActor); err != nil {
		t.Fatalf("SubmitFinalPacket: %v", err)
	}
	if job.Status != models.JobStatusSubmitted {
		t.Fatalf("status after submit = %s", job.Status)
	}
	packet, err = store.GetPacket(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetPacket: %v", err)
	}
	if packet.SubmittedAt == nil {
		t.Fatal("packet submission time not stamped")
	}

	if job, err = engine.ArchiveJob(ctx, job.ID, adminActor); err != nil {
		t.Fatalf("ArchiveJob: %v", err)
	}
	if job.Status != models.JobStatusArchived {
		t.Fatalf("status after archive = %s", job.Status)
	}

	// ARCHIVED is terminal.
	if _, err := engine.SetJobStatus(ctx, job.ID, models.JobStatusReceived, adminActor, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("transition out of ARCHIVED should fail, got %v", err)
	}

	// Audit trail must be gapless over the entire run.
	workspace, err := engine.GetWorkspace(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if len(workspace.Events) == 0 {
		t.Fatal("no audit events recorded")
	}
	for i, event := range workspace.Events {
		if event.Seq != int64(i+1) {
			t.Fatalf("events[%d].Seq = %d, trail has a gap", i, event.Seq)
		}
	}
	if workspace.Events[0].Type != models.EventJobReceived {
		t.Errorf("first event = %s, want JOB_RECEIVED", workspace.Events[0].Type)
	}
	if workspace.Events[len(workspace.Events)-1].Type != models.EventJobArchived {
		t.Errorf("last event = %s, want JOB_ARCHIVED", workspace.Events[len(workspace.Events)-1].Type)
	}
}

func TestCreateJobFromIntakeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	msg, err := engine.RecordIntake(ctx, &models.IntakeMessage{
		SiteName: "River Exchange",
		Type:     models.JobTypeSmallWorks,
	})
	if err != nil {
		t.Fatalf("RecordIntake: %v", err)
	}

	first, err := engine.CreateJobFromIntake(ctx, msg.ID, adminActor)
	if err != nil {
		t.Fatalf("first CreateJobFromIntake: %v", err)
	}
	second, err := engine.CreateJobFromIntake(ctx, msg.ID, adminActor)
	if err != nil {
		t.Fatalf("second CreateJobFromIntake: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("conversion not idempotent: %s vs %s", first.ID, second.ID)
	}

	// The processed message leaves the intake queue.
	pending, err := engine.ListIntake(ctx)
	if err != nil {
		t.Fatalf("ListIntake: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("processed message still queued: %d", len(pending))
	}
}

func TestSendDiaryRequiresGeneratedPDF(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0100", models.JobStatusDiaryPending)

	if _, err := engine.UpsertDiary(ctx, job.ID, techActor, "draft"); err != nil {
		t.Fatalf("UpsertDiary: %v", err)
	}
	if _, err := engine.SendDiary(ctx, job.ID, techActor); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("send without PDF should fail precondition, got %v", err)
	}
}

func TestReviewDiaryRejection(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0101", models.JobStatusDiaryPending)
	seedSentDiary(t, engine, job.ID)

	// Rejection without a comment is refused outright.
	if _, err := engine.ReviewDiary(ctx, job.ID, clientCtrl, models.ReviewReject, "  "); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("reject without comment should fail precondition, got %v", err)
	}

	diary, err := engine.ReviewDiary(ctx, job.ID, clientCtrl, models.ReviewReject, "missing VSWR readings")
	if err != nil {
		t.Fatalf("ReviewDiary: %v", err)
	}
	if diary.Status != models.DiaryStatusRejected {
		t.Fatalf("diary status = %s", diary.Status)
	}
	if diary.ReviewerID != clientCtrl.ID || diary.ReviewerComment != "missing VSWR readings" {
		t.Fatalf("reviewer fields = %+v", diary)
	}

	got, err := engine.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.JobStatusDiaryPending {
		t.Fatalf("rejection must return job to DIARY_PENDING, got %s", got.Status)
	}
}

func TestReviewDiaryUnknownDecision(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0102", models.JobStatusDiaryPending)
	seedSentDiary(t, engine, job.ID)

	if _, err := engine.ReviewDiary(ctx, job.ID, clientCtrl, "MAYBE", ""); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("unknown decision should fail precondition, got %v", err)
	}
}

func TestUpsertDiaryVersionsAndCarriesReviewerFields(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0103", models.JobStatusDiaryPending)
	seedSentDiary(t, engine, job.ID)

	if _, err := engine.ReviewDiary(ctx, job.ID, clientCtrl, models.ReviewReject, "redo section 2"); err != nil {
		t.Fatalf("ReviewDiary: %v", err)
	}

	diary, err := engine.UpsertDiary(ctx, job.ID, techActor, "section 2 rewritten")
	if err != nil {
		t.Fatalf("UpsertDiary: %v", err)
	}
	if diary.Version != 2 {
		t.Fatalf("diary version = %d, want 2", diary.Version)
	}
	if diary.Status != models.DiaryStatusDraft {
		t.Fatalf("new draft status = %s", diary.Status)
	}
	if diary.ReviewerID != clientCtrl.ID || diary.ReviewerComment != "redo section 2" {
		t.Fatalf("reviewer context lost on redraft: %+v", diary)
	}
	if diary.PDFDocumentID != "" {
		t.Fatalf("new draft must not reuse the old PDF, got %q", diary.PDFDocumentID)
	}
}

func TestGenerateFinalPacketGate(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0104", models.JobStatusDiarySent)

	if _, err := engine.GenerateFinalPacket(ctx, job.ID, adminActor); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("packet before diary approval should fail precondition, got %v", err)
	}
}

func TestGenerateFinalPacketDocuments(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0105", models.JobStatusDiaryApproved)

	if _, err := engine.GenerateFinalPacket(ctx, job.ID, adminActor); err != nil {
		t.Fatalf("GenerateFinalPacket: %v", err)
	}

	docs, err := engine.ListJobDocuments(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListJobDocuments: %v", err)
	}
	byType := map[models.DocumentType]int{}
	for _, doc := range docs {
		byType[doc.Type]++
	}
	for _, docType := range []models.DocumentType{
		models.DocumentTypeInvoice,
		models.DocumentTypeCompletionCertificate,
		models.DocumentTypeFinalPacket,
	} {
		if byType[docType] != 1 {
			t.Errorf("got %d %s documents, want 1", byType[docType], docType)
		}
	}

	// The status gate makes a second generation impossible.
	if _, err := engine.GenerateFinalPacket(ctx, job.ID, adminActor); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("second generation should fail precondition, got %v", err)
	}
}

func TestSetJobStatusNoOpStillAudited(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0106", models.JobStatusInProgress)

	before, err := engine.GetWorkspace(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}

	got, err := engine.SetJobStatus(ctx, job.ID, models.JobStatusInProgress, techActor, "")
	if err != nil {
		t.Fatalf("same-status SetJobStatus: %v", err)
	}
	if !got.UpdatedAt.Equal(job.UpdatedAt) {
		t.Error("no-op transition must not touch UpdatedAt")
	}

	after, err := engine.GetWorkspace(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if len(after.Events) != len(before.Events)+1 {
		t.Fatalf("no-op transition must still append an audit event: %d -> %d", len(before.Events), len(after.Events))
	}
}

func TestSetJobStatusUnknownTarget(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0107", models.JobStatusReceived)

	if _, err := engine.SetJobStatus(ctx, job.ID, "LOST_IN_TRANSIT", adminActor, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown status should fail, got %v", err)
	}
}

func TestAddEvidenceRequiresContent(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0108", models.JobStatusInProgress)

	if _, err := engine.AddEvidence(ctx, job.ID, techActor, EvidenceInput{}); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("empty evidence should fail precondition, got %v", err)
	}
}

func TestListPendingDiaryApprovals(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	sentJob := seedJob(t, store, "JOB-2026-0110", models.JobStatusDiaryPending)
	seedSentDiary(t, engine, sentJob.ID)
	draftJob := seedJob(t, store, "JOB-2026-0111", models.JobStatusDiaryPending)
	if _, err := engine.UpsertDiary(ctx, draftJob.ID, techActor, "draft only"); err != nil {
		t.Fatalf("UpsertDiary: %v", err)
	}

	pending, err := engine.ListPendingDiaryApprovals(ctx)
	if err != nil {
		t.Fatalf("ListPendingDiaryApprovals: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending approvals, want 1", len(pending))
	}
	if pending[0].Job.ID != sentJob.ID {
		t.Fatalf("pending approval for %s, want %s", pending[0].Job.ID, sentJob.ID)
	}
}

func TestPipelineCountsZeroFill(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	seedJob(t, store, "JOB-2026-0120", models.JobStatusReceived)
	seedJob(t, store, "JOB-2026-0121", models.JobStatusReceived)
	seedJob(t, store, "JOB-2026-0122", models.JobStatusArchived)

	counts, err := engine.PipelineCounts(ctx)
	if err != nil {
		t.Fatalf("PipelineCounts: %v", err)
	}
	if len(counts) != 11 {
		t.Fatalf("counts cover %d stages, want all 11", len(counts))
	}
	if counts[models.JobStatusReceived] != 2 {
		t.Errorf("RECEIVED count = %d", counts[models.JobStatusReceived])
	}
	if counts[models.JobStatusDiaryPending] != 0 {
		t.Errorf("empty stage count = %d, want 0", counts[models.JobStatusDiaryPending])
	}
}

func TestListStuckJobs(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	engine := NewEngine(store, docstore.NewStore(store), audit.NewLog(store), time.Hour)

	seedJob(t, store, "JOB-2026-0130", models.JobStatusAssigned)

	stale := seedJob(t, store, "JOB-2026-0131", models.JobStatusDiaryPending)
	prev := stale.UpdatedAt
	stale.LastStateChangeAt = time.Now().UTC().Add(-3 * time.Hour)
	if err := store.UpdateJob(ctx, stale, prev); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	submitted := seedJob(t, store, "JOB-2026-0132", models.JobStatusSubmitted)
	prev = submitted.UpdatedAt
	submitted.LastStateChangeAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := store.UpdateJob(ctx, submitted, prev); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	stuck, err := engine.ListStuckJobs(ctx)
	if err != nil {
		t.Fatalf("ListStuckJobs: %v", err)
	}
	if len(stuck) != 1 {
		t.Fatalf("got %d stuck jobs, want 1", len(stuck))
	}
	if stuck[0].ID != stale.ID {
		t.Fatalf("stuck job = %s, want %s", stuck[0].ID, stale.ID)
	}
}

func TestAssignTechniciansOutsideApproved(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0140", models.JobStatusInProgress)

	got, err := engine.AssignTechnicians(ctx, job.ID, []string{"tech-5"}, adminActor)
	if err != nil {
		t.Fatalf("AssignTechnicians: %v", err)
	}
	if got.Status != models.JobStatusInProgress {
		t.Fatalf("crew swap must not transition, got %s", got.Status)
	}
	if len(got.AssignedTechIDs) != 1 || got.AssignedTechIDs[0] != "tech-5" {
		t.Fatalf("crew = %v", got.AssignedTechIDs)
	}
}

func TestApproveJobOnlyFromReceived(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	job := seedJob(t, store, "JOB-2026-0141", models.JobStatusAssigned)

	if _, err := engine.ApproveJob(ctx, job.ID, adminActor); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve outside RECEIVED should fail, got %v", err)
	}
}
