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

// DiaryHandler handles diary draft, send and review requests
type DiaryHandler struct {
	engine *workflow.Engine
	actors *ActorResolver
}

// NewDiaryHandler creates a new diary handler
func NewDiaryHandler(engine *workflow.Engine, actors *ActorResolver) *DiaryHandler {
	return &DiaryHandler{engine: engine, actors: actors}
}

func (h *DiaryHandler) jobWithAccess(r *http.Request, jobID string, permission rbac.Permission) (*models.UserProfile, error) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		return nil, err
	}
	if err := rbac.AssertPermission(actor, permission); err != nil {
		return nil, err
	}
	job, err := h.engine.GetJob(r.Context(), jobID)
	if err != nil {
		return nil, err
	}
	if err := scope.AssertScope(actor, job); err != nil {
		return nil, err
	}
	return actor, nil
}

// DiaryActionRequest drives POST /v1/jobs/{id}/diary
type DiaryActionRequest struct {
	Action  string `json:"action"` // SAVE_DRAFT | GENERATE_PDF | SEND
	Content string `json:"content,omitempty"`
}

// DiaryAction handles POST /v1/jobs/{id}/diary
func (h *DiaryHandler) DiaryAction(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req DiaryActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	var permission rbac.Permission
	switch req.Action {
	case "SAVE_DRAFT", "GENERATE_PDF":
		permission = rbac.PermDiaryDraft
	case "SEND":
		permission = rbac.PermDiarySend
	default:
		badRequest(w, "unknown action")
		return
	}

	actor, err := h.jobWithAccess(r, jobID, permission)
	if err != nil {
		writeError(w, err)
		return
	}

	switch req.Action {
	case "SAVE_DRAFT":
		diary, err := h.engine.UpsertDiary(r.Context(), jobID, actor, req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"diary": diary})
	case "GENERATE_PDF":
		document, err := h.engine.GenerateDiaryPDF(r.Context(), jobID, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"document": document})
	case "SEND":
		diary, err := h.engine.SendDiary(r.Context(), jobID, actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"diary": diary})
	}
}

// ListPendingApprovals handles GET /v1/approvals/diaries
func (h *DiaryHandler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.AssertPermission(actor, rbac.PermDiaryApprove); err != nil {
		writeError(w, err)
		return
	}

	pending, err := h.engine.ListPendingDiaryApprovals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	visible := make([]models.PendingDiaryApproval, 0, len(pending))
	for _, p := range pending {
		if scope.CanAccess(actor, p.Job) {
			visible = append(visible, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": visible})
}

// ReviewRequest drives POST /v1/jobs/{id}/diary/review
type ReviewRequest struct {
	Decision models.ReviewDecision `json:"decision"`
	Comment  string                `json:"comment,omitempty"`
}

// ReviewDiary handles POST /v1/jobs/{id}/diary/review
func (h *DiaryHandler) ReviewDiary(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	actor, err := h.jobWithAccess(r, jobID, rbac.PermDiaryApprove)
	if err != nil {
		writeError(w, err)
		return
	}

	diary, err := h.engine.ReviewDiary(r.Context(), jobID, actor, req.Decision, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"diary": diary})
}
