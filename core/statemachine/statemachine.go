// Package statemachine holds the fixed job lifecycle transition table.
// The only back-edge is DIARY_SENT -> DIARY_PENDING (client rejection);
// everything else moves forward, with ARCHIVED as the sole terminal state.
package statemachine

import (
	"errors"
	"fmt"
	"strings"

	"simunet-portal/core/models"
)

// ErrInvalidTransition is returned when a requested or implied status
// change has no edge in the transition table.
var ErrInvalidTransition = errors.New("invalid state transition")

// statusOrder defines both the lifecycle sequence and the dashboard rank.
var statusOrder = []models.JobStatus{
	models.JobStatusReceived,
	models.JobStatusApproved,
	models.JobStatusAssigned,
	models.JobStatusInProgress,
	models.JobStatusSiteWorkComplete,
	models.JobStatusDiaryPending,
	models.JobStatusDiarySent,
	models.JobStatusDiaryApproved,
	models.JobStatusPacketGenerated,
	models.JobStatusSubmitted,
	models.JobStatusArchived,
}

var allowedTransitions = map[models.JobStatus]map[models.JobStatus]struct{}{
	models.JobStatusReceived: {
		models.JobStatusApproved: {},
	},
	models.JobStatusApproved: {
		models.JobStatusAssigned: {},
	},
	models.JobStatusAssigned: {
		models.JobStatusInProgress:       {},
		models.JobStatusSiteWorkComplete: {},
	},
	models.JobStatusInProgress: {
		models.JobStatusSiteWorkComplete: {},
	},
	models.JobStatusSiteWorkComplete: {
		models.JobStatusDiaryPending: {},
	},
	models.JobStatusDiaryPending: {
		models.JobStatusDiarySent: {},
	},
	models.JobStatusDiarySent: {
		models.JobStatusDiaryPending:  {},
		models.JobStatusDiaryApproved: {},
	},
	models.JobStatusDiaryApproved: {
		models.JobStatusPacketGenerated: {},
	},
	models.JobStatusPacketGenerated: {
		models.JobStatusSubmitted: {},
	},
	models.JobStatusSubmitted: {
		models.JobStatusArchived: {},
	},
	models.JobStatusArchived: {},
}

var statusLabels = map[models.JobStatus]string{
	models.JobStatusReceived:         "Received",
	models.JobStatusApproved:         "Approved",
	models.JobStatusAssigned:         "Assigned",
	models.JobStatusInProgress:       "In Progress",
	models.JobStatusSiteWorkComplete: "Site Work Complete",
	models.JobStatusDiaryPending:     "Diary Pending",
	models.JobStatusDiarySent:        "Diary Sent",
	models.JobStatusDiaryApproved:    "Diary Approved",
	models.JobStatusPacketGenerated:  "Packet Generated",
	models.JobStatusSubmitted:        "Submitted",
	models.JobStatusArchived:         "Archived",
}

// ValidStatus reports whether the status is one of the eleven lifecycle stages.
func ValidStatus(status models.JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// IsAllowed reports whether the from -> to edge exists in the table.
func IsAllowed(from, to models.JobStatus) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// AssertTransition fails with ErrInvalidTransition when the edge is absent.
func AssertTransition(from, to models.JobStatus) error {
	if !ValidStatus(from) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if !ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !IsAllowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Rank gives the status position in lifecycle order, for display sorting
// only. Unknown statuses sort last.
func Rank(status models.JobStatus) int {
	for i, s := range statusOrder {
		if s == status {
			return i
		}
	}
	return len(statusOrder)
}

// Statuses returns the eleven lifecycle stages in order.
func Statuses() []models.JobStatus {
	out := make([]models.JobStatus, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// Label returns the human-readable form of a status.
func Label(status models.JobStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return strings.ToLower(strings.ReplaceAll(string(status), "_", " "))
}
