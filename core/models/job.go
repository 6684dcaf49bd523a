package models

import "time"

// Job represents a field-service job tracked through the portal lifecycle
type Job struct {
	ID                string    `json:"id"`
	Type              JobType   `json:"type"`
	SiteName          string    `json:"siteName"`
	ClientReference   string    `json:"clientReference"`
	Description       string    `json:"description"`
	RequiredMaterials []string  `json:"requiredMaterials"`
	Status            JobStatus `json:"status"`
	AssignedTechIDs   []string  `json:"assignedTechIds"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	LastStateChangeAt time.Time `json:"lastStateChangeAt"`
}

// JobType represents the category of field work
type JobType string

const (
	JobTypeMaintenance JobType = "MAINTENANCE"
	JobTypeSmallWorks  JobType = "SMALL_WORKS"
)

// JobStatus represents the current lifecycle stage of a job
type JobStatus string

const (
	JobStatusReceived         JobStatus = "RECEIVED"
	JobStatusApproved         JobStatus = "APPROVED"
	JobStatusAssigned         JobStatus = "ASSIGNED"
	JobStatusInProgress       JobStatus = "IN_PROGRESS"
	JobStatusSiteWorkComplete JobStatus = "SITE_WORK_COMPLETE"
	JobStatusDiaryPending     JobStatus = "DIARY_PENDING"
	JobStatusDiarySent        JobStatus = "DIARY_SENT"
	JobStatusDiaryApproved    JobStatus = "DIARY_APPROVED"
	JobStatusPacketGenerated  JobStatus = "PACKET_GENERATED"
	JobStatusSubmitted        JobStatus = "SUBMITTED"
	JobStatusArchived         JobStatus = "ARCHIVED"
)

// AssignedTo reports whether the given technician is on the job's crew.
func (j *Job) AssignedTo(techID string) bool {
	for _, id := range j.AssignedTechIDs {
		if id == techID {
			return true
		}
	}
	return false
}
