package handlers

import (
	"encoding/json"
	"net/http"

	"simunet-portal/core/models"
	"simunet-portal/core/rbac"
	"simunet-portal/core/workflow"
)

// IntakeHandler handles the incoming message queue
type IntakeHandler struct {
	engine *workflow.Engine
	actors *ActorResolver
}

// NewIntakeHandler creates a new intake handler
func NewIntakeHandler(engine *workflow.Engine, actors *ActorResolver) *IntakeHandler {
	return &IntakeHandler{engine: engine, actors: actors}
}

// ListIntake handles GET /v1/intake
func (h *IntakeHandler) ListIntake(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.AssertPermission(actor, rbac.PermIntakeRead); err != nil {
		writeError(w, err)
		return
	}

	messages, err := h.engine.ListIntake(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// RecordIntakeRequest drives POST /v1/intake
type RecordIntakeRequest struct {
	SourceChannel string         `json:"sourceChannel"`
	SiteName      string         `json:"siteName"`
	Type          models.JobType `json:"type"`
	Description   string         `json:"description"`
	Materials     []string       `json:"materials,omitempty"`
	MapIncluded   bool           `json:"mapIncluded"`
	Attachments   []string       `json:"attachments,omitempty"`
}

// RecordIntake handles POST /v1/intake
func (h *IntakeHandler) RecordIntake(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.AssertPermission(actor, rbac.PermIntakeRead); err != nil {
		writeError(w, err)
		return
	}

	var req RecordIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.SiteName == "" || req.Type == "" {
		badRequest(w, "siteName and type are required")
		return
	}

	message, err := h.engine.RecordIntake(r.Context(), &models.IntakeMessage{
		SourceChannel: req.SourceChannel,
		SiteName:      req.SiteName,
		Type:          req.Type,
		Description:   req.Description,
		Materials:     req.Materials,
		MapIncluded:   req.MapIncluded,
		Attachments:   req.Attachments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": message})
}

// CreateJobRequest drives POST /v1/intake/create-job
type CreateJobRequest struct {
	MessageID string `json:"messageId"`
}

// CreateJob handles POST /v1/intake/create-job
func (h *IntakeHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.AssertPermission(actor, rbac.PermIntakeCreateJob); err != nil {
		writeError(w, err)
		return
	}

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.MessageID == "" {
		badRequest(w, "messageId is required")
		return
	}

	job, err := h.engine.CreateJobFromIntake(r.Context(), req.MessageID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"job": job})
}
