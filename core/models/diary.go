package models

import "time"

// DiaryRecord is the versioned work diary for a job. There is at most one
// record per job; each edit replaces it with the next version.
type DiaryRecord struct {
	JobID           string      `json:"jobId"`
	Version         int         `json:"version"`
	Content         string      `json:"content"`
	Status          DiaryStatus `json:"status"`
	PDFDocumentID   string      `json:"pdfDocumentId,omitempty"`
	LastEditedBy    string      `json:"lastEditedBy"`
	ReviewerID      string      `json:"reviewerId,omitempty"`
	ReviewerComment string      `json:"reviewerComment,omitempty"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// DiaryStatus represents the review state of a diary version
type DiaryStatus string

const (
	DiaryStatusDraft    DiaryStatus = "DRAFT"
	DiaryStatusSent     DiaryStatus = "SENT"
	DiaryStatusApproved DiaryStatus = "APPROVED"
	DiaryStatusRejected DiaryStatus = "REJECTED"
)

// ReviewDecision is a client verdict on a sent diary
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "APPROVE"
	ReviewReject  ReviewDecision = "REJECT"
)

// FinalPacket points at the bundled completion document for a job.
// Regeneration overwrites the row rather than versioning it.
type FinalPacket struct {
	JobID            string     `json:"jobId"`
	PacketDocumentID string     `json:"packetDocumentId"`
	GeneratedAt      time.Time  `json:"generatedAt"`
	GeneratedBy      string     `json:"generatedBy"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
}
