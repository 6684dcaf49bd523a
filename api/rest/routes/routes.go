package routes

import (
	"simunet-portal/api/rest/handlers"
	"simunet-portal/core/workflow"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, engine *workflow.Engine, actors *handlers.ActorResolver) {
	jobHandler := handlers.NewJobHandler(engine, actors)
	diaryHandler := handlers.NewDiaryHandler(engine, actors)
	intakeHandler := handlers.NewIntakeHandler(engine, actors)
	dashboardHandler := handlers.NewDashboardHandler(engine, actors)

	api := r.PathPrefix("/v1").Subrouter()

	// Job endpoints
	api.HandleFunc("/jobs", jobHandler.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", jobHandler.GetWorkspace).Methods("GET")
	api.HandleFunc("/jobs/{id}/events", jobHandler.GetEvents).Methods("GET")
	api.HandleFunc("/jobs/{id}/documents", jobHandler.GetDocuments).Methods("GET")
	api.HandleFunc("/jobs/{id}/status", jobHandler.UpdateStatus).Methods("POST")
	api.HandleFunc("/jobs/{id}/evidence", jobHandler.AddEvidence).Methods("POST")
	api.HandleFunc("/jobs/{id}/packet", jobHandler.GetPacket).Methods("GET")
	api.HandleFunc("/jobs/{id}/packet", jobHandler.PacketAction).Methods("POST")

	// Diary endpoints
	api.HandleFunc("/jobs/{id}/diary", diaryHandler.DiaryAction).Methods("POST")
	api.HandleFunc("/jobs/{id}/diary/review", diaryHandler.ReviewDiary).Methods("POST")
	api.HandleFunc("/approvals/diaries", diaryHandler.ListPendingApprovals).Methods("GET")

	// Intake endpoints
	api.HandleFunc("/intake", intakeHandler.ListIntake).Methods("GET")
	api.HandleFunc("/intake", intakeHandler.RecordIntake).Methods("POST")
	api.HandleFunc("/intake/create-job", intakeHandler.CreateJob).Methods("POST")

	// Dashboard endpoints
	api.HandleFunc("/dashboard/pipeline", dashboardHandler.Pipeline).Methods("GET")
	api.HandleFunc("/dashboard/stuck", dashboardHandler.StuckJobs).Methods("GET")
	api.HandleFunc("/archive", dashboardHandler.SearchArchive).Methods("GET")
}
