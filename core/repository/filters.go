package repository

import (
	"strings"

	"simunet-portal/core/models"
)

// archiveStatuses are the lifecycle stages visible to archive search.
var archiveStatuses = map[models.JobStatus]struct{}{
	models.JobStatusPacketGenerated: {},
	models.JobStatusSubmitted:       {},
	models.JobStatusArchived:        {},
}

// JobMatches applies JobFilters to a job. Shared by every store so the
// SQL implementations only push down the cheap exact-match columns.
func JobMatches(job *models.Job, filters models.JobFilters) bool {
	if filters.Status != "" && job.Status != filters.Status {
		return false
	}
	if filters.Type != "" && job.Type != filters.Type {
		return false
	}
	if filters.AssignedTechID != "" && !job.AssignedTo(filters.AssignedTechID) {
		return false
	}
	if filters.Site != "" && !strings.Contains(strings.ToLower(job.SiteName), strings.ToLower(filters.Site)) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(filters.Query)); q != "" {
		return strings.Contains(strings.ToLower(job.ID), q) ||
			strings.Contains(strings.ToLower(job.SiteName), q) ||
			strings.Contains(strings.ToLower(job.ClientReference), q)
	}
	return true
}

// ArchiveMatches applies ArchiveFilters to a job, including the restriction
// to completed lifecycle stages.
func ArchiveMatches(job *models.Job, filters models.ArchiveFilters) bool {
	if _, ok := archiveStatuses[job.Status]; !ok {
		return false
	}
	if filters.JobID != "" && !strings.Contains(job.ID, filters.JobID) {
		return false
	}
	if filters.SiteName != "" && !strings.Contains(strings.ToLower(job.SiteName), strings.ToLower(filters.SiteName)) {
		return false
	}
	if filters.Type != "" && job.Type != filters.Type {
		return false
	}
	if filters.DateFrom != nil && job.UpdatedAt.Before(*filters.DateFrom) {
		return false
	}
	if filters.DateTo != nil && job.UpdatedAt.After(*filters.DateTo) {
		return false
	}
	return true
}
