package handlers

import (
	"encoding/json"
	"net/http"

	"simunet-portal/core/models"
	"simunet-portal/core/rbac"
	"simunet-portal/core/scope"
	"simunet-portal/core/workflow"

	"github.com/gorilla/mux"
)

// JobHandler handles job lifecycle HTTP requests
type JobHandler struct {
	engine *workflow.Engine
	actors *ActorResolver
}

// NewJobHandler creates a new job handler
func NewJobHandler(engine *workflow.Engine, actors *ActorResolver) *JobHandler {
	return &JobHandler{engine: engine, actors: actors}
}

// actorWithPermission resolves the caller and checks the role permission.
func (h *JobHandler) actorWithPermission(r *http.Request, permission rbac.Permission) (*models.UserProfile, error) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		return nil, err
	}
	if err := rbac.AssertPermission(actor, permission); err != nil {
		return nil, err
	}
	return actor, nil
}

// jobWithAccess runs the full gate pipeline: actor, role permission,
// job existence, then per-job scope.
func (h *JobHandler) jobWithAccess(r *http.Request, jobID string, permission rbac.Permission) (*models.UserProfile, *models.Job, error) {
	actor, err := h.actorWithPermission(r, permission)
	if err != nil {
		return nil, nil, err
	}
	job, err := h.engine.GetJob(r.Context(), jobID)
	if err != nil {
		return nil, nil, err
	}
	if err := scope.AssertScope(actor, job); err != nil {
		return nil, nil, err
	}
	return actor, job, nil
}

// ListJobs handles GET /v1/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorWithPermission(r, rbac.PermJobRead)
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	filters := models.JobFilters{
		Query:          query.Get("q"),
		Status:         models.JobStatus(query.Get("status")),
		Type:           models.JobType(query.Get("type")),
		AssignedTechID: query.Get("assignedTechId"),
		Site:           query.Get("site"),
	}

	jobs, err := h.engine.ListJobs(r.Context(), filters)
	if err != nil {
		writeError(w, err)
		return
	}

	visible := make([]*models.Job, 0, len(jobs))
	for _, job := range jobs {
		if scope.CanAccess(actor, job) {
			visible = append(visible, job)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": visible})
}

// GetWorkspace handles GET /v1/jobs/{id}
func (h *JobHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if _, _, err := h.jobWithAccess(r, jobID, rbac.PermJobRead); err != nil {
		writeError(w, err)
		return
	}

	workspace, err := h.engine.GetWorkspace(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workspace)
}

// GetEvents handles GET /v1/jobs/{id}/events
func (h *JobHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if _, _, err := h.jobWithAccess(r, jobID, rbac.PermJobRead); err != nil {
		writeError(w, err)
		return
	}

	workspace, err := h.engine.GetWorkspace(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": workspace.Events})
}

// GetDocuments handles GET /v1/jobs/{id}/documents
func (h *JobHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if _, _, err := h.jobWithAccess(r, jobID, rbac.PermJobRead); err != nil {
		writeError(w, err)
		return
	}

	documents, err := h.engine.ListJobDocuments(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": documents})
}

// StatusActionRequest drives POST /v1/jobs/{id}/status
type StatusActionRequest struct {
	Action  string           `json:"action"` // APPROVE | ASSIGN | SET_STATUS | START_WORK | SITE_COMPLETE
	TechIDs []string         `json:"techIds,omitempty"`
	Status  models.JobStatus `json:"status,omitempty"`
}

// UpdateStatus handles POST /v1/jobs/{id}/status
func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req StatusActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	var permission rbac.Permission
	switch req.Action {
	case "APPROVE":
		permission = rbac.PermJobApprove
	case "ASSIGN":
		permission = rbac.PermJobAssign
	case "SET_STATUS", "START_WORK", "SITE_COMPLETE":
		permission = rbac.PermJobStatusUpdate
	default:
		badRequest(w, "unknown action")
		return
	}

	actor, _, err := h.jobWithAccess(r, jobID, permission)
	if err != nil {
		writeError(w, err)
		return
	}

	var job *models.Job
	switch req.Action {
	case "APPROVE":
		job, err = h.engine.ApproveJob(r.Context(), jobID, actor)
	case "ASSIGN":
		job, err = h.engine.AssignTechnicians(r.Context(), jobID, req.TechIDs, actor)
	case "SET_STATUS":
		if req.Status == "" {
			badRequest(w, "status is required for SET_STATUS")
			return
		}
		job, err = h.engine.SetJobStatus(r.Context(), jobID, req.Status, actor, "")
	case "START_WORK":
		job, err = h.engine.SetJobStatus(r.Context(), jobID, models.JobStatusInProgress, actor,
			"Technician started on-site execution.")
	case "SITE_COMPLETE":
		job, err = h.engine.SetJobStatus(r.Context(), jobID, models.JobStatusSiteWorkComplete, actor,
			"Technician marked site work complete.")
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

// EvidenceRequest drives POST /v1/jobs/{id}/evidence
type EvidenceRequest struct {
	Note      string `json:"note,omitempty"`
	PhotoName string `json:"photoName,omitempty"`
}

// AddEvidence handles POST /v1/jobs/{id}/evidence
func (h *JobHandler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req EvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Note == "" && req.PhotoName == "" {
		badRequest(w, "evidence needs a note or a photo")
		return
	}

	actor, _, err := h.jobWithAccess(r, jobID, rbac.PermEvidenceUpload)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := h.engine.AddEvidence(r.Context(), jobID, actor, workflow.EvidenceInput{
		Note:      req.Note,
		PhotoName: req.PhotoName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

// GetPacket handles GET /v1/jobs/{id}/packet
func (h *JobHandler) GetPacket(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if _, _, err := h.jobWithAccess(r, jobID, rbac.PermPacketDownload); err != nil {
		writeError(w, err)
		return
	}

	workspace, err := h.engine.GetWorkspace(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	if workspace.Packet == nil {
		writeError(w, workflow.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"packet": workspace.Packet})
}

// PacketActionRequest drives POST /v1/jobs/{id}/packet
type PacketActionRequest struct {
	Action string `json:"action"` // GENERATE | SUBMIT | ARCHIVE
}

// PacketAction handles POST /v1/jobs/{id}/packet
func (h *JobHandler) PacketAction(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req PacketActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// Packet actions are open to packet generators and to admins driving
	// the tail of the lifecycle through status updates.
	if !rbac.HasPermission(actor.Role, rbac.PermPacketGenerate) &&
		!rbac.HasPermission(actor.Role, rbac.PermJobStatusUpdate) {
		writeError(w, rbac.AssertPermission(actor, rbac.PermPacketGenerate))
		return
	}
	job, err := h.engine.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := scope.AssertScope(actor, job); err != nil {
		writeError(w, err)
		return
	}

	switch req.Action {
	case "GENERATE":
		packet, err := h.engine.GenerateFinalPacket(r.Context(), jobID, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"packet": packet})
	case "SUBMIT":
		job, err := h.engine.SubmitFinalPacket(r.Context(), jobID, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
	case "ARCHIVE":
		job, err := h.engine.ArchiveJob(r.Context(), jobID, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
	default:
		badRequest(w, "unknown action")
	}
}
