package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"simunet-portal/core/audit"
	"simunet-portal/core/docstore"
	"simunet-portal/core/models"
	"simunet-portal/core/repository"
	"simunet-portal/core/workflow"

	"github.com/gorilla/mux"
)

func testUsers() map[string]*models.UserProfile {
	return map[string]*models.UserProfile{
		"admin-1": {ID: "admin-1", Name: "Dato", Role: models.RoleAdmin},
		"tech-1":  {ID: "tech-1", Name: "Luka", Role: models.RoleTech},
		"client-1": {
			ID:    "client-1",
			Name:  "Nino",
			Role:  models.RoleClient,
			Scope: models.UserScope{Sites: []string{"Hilltop Mast 12"}},
		},
	}
}

func testRouter(t *testing.T) (*mux.Router, *workflow.Engine, repository.Store) {
	t.Helper()
	store := repository.NewMemoryStore()
	engine := workflow.NewEngine(store, docstore.NewStore(store), audit.NewLog(store), 0)
	actors := NewActorResolver(testUsers())

	r := mux.NewRouter()
	api := r.PathPrefix("/v1").Subrouter()
	jobHandler := NewJobHandler(engine, actors)
	diaryHandler := NewDiaryHandler(engine, actors)
	api.HandleFunc("/jobs", jobHandler.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", jobHandler.GetWorkspace).Methods("GET")
	api.HandleFunc("/jobs/{id}/status", jobHandler.UpdateStatus).Methods("POST")
	api.HandleFunc("/jobs/{id}/evidence", jobHandler.AddEvidence).Methods("POST")
	api.HandleFunc("/jobs/{id}/diary/review", diaryHandler.ReviewDiary).Methods("POST")
	return r, engine, store
}

func seedJob(t *testing.T, store repository.Store, id, site string, status models.JobStatus, techIDs ...string) {
	t.Helper()
	now := time.Now().UTC()
	job := &models.Job{
		ID:                id,
		Type:              models.JobTypeMaintenance,
		SiteName:          site,
		Status:            status,
		AssignedTechIDs:   techIDs,
		CreatedAt:         now,
		UpdatedAt:         now,
		LastStateChangeAt: now,
	}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func doRequest(r *mux.Router, method, path, actorID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if actorID != "" {
		req.Header.Set(ActorHeader, actorID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMissingActorIsUnauthorized(t *testing.T) {
	r, _, _ := testRouter(t)
	rec := doRequest(r, "GET", "/v1/jobs", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestUnknownActorIsUnauthorized(t *testing.T) {
	r, _, _ := testRouter(t)
	rec := doRequest(r, "GET", "/v1/jobs", "ghost", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListJobsScopesResults(t *testing.T) {
	r, _, store := testRouter(t)
	seedJob(t, store, "JOB-2026-0001", "Hilltop Mast 12", models.JobStatusReceived)
	seedJob(t, store, "JOB-2026-0002", "River Exchange", models.JobStatusReceived)

	tests := []struct {
		actor string
		want  int
	}{
		{"admin-1", 2},
		{"client-1", 1}, // only the Hilltop site is in scope
		{"tech-1", 0},   // not on any crew
	}
	for _, tt := range tests {
		rec := doRequest(r, "GET", "/v1/jobs", tt.actor, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.actor, rec.Code)
		}
		var body struct {
			Jobs []models.Job `json:"jobs"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode: %v", tt.actor, err)
		}
		if len(body.Jobs) != tt.want {
			t.Errorf("%s sees %d jobs, want %d", tt.actor, len(body.Jobs), tt.want)
		}
	}
}

func TestGetWorkspaceScopeDenied(t *testing.T) {
	r, _, store := testRouter(t)
	seedJob(t, store, "JOB-2026-0003", "River Exchange", models.JobStatusReceived)

	rec := doRequest(r, "GET", "/v1/jobs/JOB-2026-0003", "client-1", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("out-of-scope read status = %d, want 403", rec.Code)
	}
}

func TestGetWorkspaceNotFound(t *testing.T) {
	r, _, _ := testRouter(t)
	rec := doRequest(r, "GET", "/v1/jobs/JOB-2026-9999", "admin-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatusActionPermissions(t *testing.T) {
	r, _, store := testRouter(t)
	seedJob(t, store, "JOB-2026-0004", "Hilltop Mast 12", models.JobStatusReceived)

	// Approving is an admin action.
	rec := doRequest(r, "POST", "/v1/jobs/JOB-2026-0004/status", "tech-1",
		StatusActionRequest{Action: "APPROVE"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tech approve status = %d, want 403", rec.Code)
	}

	rec = doRequest(r, "POST", "/v1/jobs/JOB-2026-0004/status", "admin-1",
		StatusActionRequest{Action: "APPROVE"})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin approve status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Approving twice trips the transition table.
	rec = doRequest(r, "POST", "/v1/jobs/JOB-2026-0004/status", "admin-1",
		StatusActionRequest{Action: "APPROVE"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second approve status = %d, want 409", rec.Code)
	}

	rec = doRequest(r, "POST", "/v1/jobs/JOB-2026-0004/status", "admin-1",
		StatusActionRequest{Action: "TELEPORT"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d, want 400", rec.Code)
	}
}

func TestEvidenceRequiresAssignedTech(t *testing.T) {
	r, _, store := testRouter(t)
	seedJob(t, store, "JOB-2026-0005", "Hilltop Mast 12", models.JobStatusAssigned, "tech-1")

	// Admins never upload field evidence.
	rec := doRequest(r, "POST", "/v1/jobs/JOB-2026-0005/evidence", "admin-1",
		EvidenceRequest{Note: "checked"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin evidence status = %d, want 403", rec.Code)
	}

	rec = doRequest(r, "POST", "/v1/jobs/JOB-2026-0005/evidence", "tech-1",
		EvidenceRequest{Note: "cable pulled", PhotoName: "mast.jpg"})
	if rec.Code != http.StatusOK {
		t.Fatalf("tech evidence status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Job models.Job `json:"job"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Job.Status != models.JobStatusInProgress {
		t.Fatalf("evidence against ASSIGNED must start work, got %s", body.Job.Status)
	}
}

func TestReviewDiaryRejectionNeedsComment(t *testing.T) {
	r, engine, store := testRouter(t)
	ctx := context.Background()
	seedJob(t, store, "JOB-2026-0006", "Hilltop Mast 12", models.JobStatusDiaryPending, "tech-1")

	tech := testUsers()["tech-1"]
	if _, err := engine.UpsertDiary(ctx, "JOB-2026-0006", tech, "day one"); err != nil {
		t.Fatalf("UpsertDiary: %v", err)
	}
	if _, err := engine.GenerateDiaryPDF(ctx, "JOB-2026-0006", tech); err != nil {
		t.Fatalf("GenerateDiaryPDF: %v", err)
	}
	if _, err := engine.SendDiary(ctx, "JOB-2026-0006", tech); err != nil {
		t.Fatalf("SendDiary: %v", err)
	}

	rec := doRequest(r, "POST", "/v1/jobs/JOB-2026-0006/diary/review", "client-1",
		ReviewRequest{Decision: models.ReviewReject})
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("reject without comment status = %d, want 412", rec.Code)
	}

	rec = doRequest(r, "POST", "/v1/jobs/JOB-2026-0006/diary/review", "client-1",
		ReviewRequest{Decision: models.ReviewReject, Comment: "photos missing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject with comment status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Admins cannot review their own company's diaries.
	rec = doRequest(r, "POST", "/v1/jobs/JOB-2026-0006/diary/review", "admin-1",
		ReviewRequest{Decision: models.ReviewApprove})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin review status = %d, want 403", rec.Code)
	}
}
