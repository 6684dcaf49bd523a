package models

import "time"

// JobWorkspace is the full read model for a single job
type JobWorkspace struct {
	Job       *Job          `json:"job"`
	Events    []JobEvent    `json:"events"`
	Documents []JobDocument `json:"documents"`
	Diary     *DiaryRecord  `json:"diary,omitempty"`
	Packet    *FinalPacket  `json:"packet,omitempty"`
}

// PendingDiaryApproval pairs a sent diary with its job for the review queue
type PendingDiaryApproval struct {
	Job   *Job         `json:"job"`
	Diary *DiaryRecord `json:"diary"`
}

// JobFilters narrows job listings. Query matches job id, site name or
// client reference, case-insensitively.
type JobFilters struct {
	Query          string
	Status         JobStatus
	Type           JobType
	AssignedTechID string
	Site           string
}

// ArchiveFilters narrows archive searches over completed jobs
type ArchiveFilters struct {
	JobID    string
	SiteName string
	Type     JobType
	DateFrom *time.Time
	DateTo   *time.Time
}
