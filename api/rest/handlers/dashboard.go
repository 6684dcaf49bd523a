package handlers

import (
	"net/http"
	"time"

	"simunet-portal/core/models"
	"simunet-portal/core/rbac"
	"simunet-portal/core/scope"
	"simunet-portal/core/workflow"
)

// DashboardHandler serves pipeline counts, stuck jobs and archive search
type DashboardHandler struct {
	engine *workflow.Engine
	actors *ActorResolver
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(engine *workflow.Engine, actors *ActorResolver) *DashboardHandler {
	return &DashboardHandler{engine: engine, actors: actors}
}

// Pipeline handles GET /v1/dashboard/pipeline
func (h *DashboardHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.AssertPermission(actor, rbac.PermJobRead); err != nil {
		writeError(w, err)
		return
	}

	counts, err := h.engine.PipelineCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pipeline": counts})
}

// StuckJobs handles GET /v1/dashboard/stuck
func (h *DashboardHandler) StuckJobs(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.AssertPermission(actor, rbac.PermJobRead); err != nil {
		writeError(w, err)
		return
	}

	jobs, err := h.engine.ListStuckJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// SearchArchive handles GET /v1/archive
func (h *DashboardHandler) SearchArchive(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rbac.AssertPermission(actor, rbac.PermArchiveRead); err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	filters := models.ArchiveFilters{
		JobID:    query.Get("jobId"),
		SiteName: query.Get("site"),
		Type:     models.JobType(query.Get("type")),
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "invalid from timestamp")
			return
		}
		filters.DateFrom = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "invalid to timestamp")
			return
		}
		filters.DateTo = &to
	}

	jobs, err := h.engine.SearchArchive(r.Context(), filters)
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
