package models

import "time"

// JobEvent is one append-only audit entry. Seq is assigned by the store and
// is gapless per job, starting at 1; the ordered sequence is the canonical
// activity trail.
type JobEvent struct {
	ID        string                 `json:"id"`
	Seq       int64                  `json:"seq"`
	JobID     string                 `json:"jobId"`
	Type      EventType              `json:"type"`
	ActorID   string                 `json:"actorId"`
	ActorName string                 `json:"actorName"`
	Message   string                 `json:"message"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the kind of action recorded in the audit trail
type EventType string

const (
	EventJobReceived      EventType = "JOB_RECEIVED"
	EventJobApproved      EventType = "JOB_APPROVED"
	EventTechAssigned     EventType = "TECH_ASSIGNED"
	EventStatusChanged    EventType = "STATUS_CHANGED"
	EventEvidenceUploaded EventType = "EVIDENCE_UPLOADED"
	EventDiaryUpdated     EventType = "DIARY_UPDATED"
	EventDiarySent        EventType = "DIARY_SENT"
	EventDiaryReviewed    EventType = "DIARY_REVIEWED"
	EventPacketGenerated  EventType = "PACKET_GENERATED"
	EventPacketSubmitted  EventType = "PACKET_SUBMITTED"
	EventJobArchived      EventType = "JOB_ARCHIVED"
	EventSystemNote       EventType = "SYSTEM_NOTE"
)
