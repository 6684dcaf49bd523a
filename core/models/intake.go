package models

import "time"

// IntakeMessage is a job request received from the Teams intake channel,
// waiting to be converted into a tracked job.
type IntakeMessage struct {
	ID             string    `json:"id"`
	SourceChannel  string    `json:"sourceChannel"`
	SiteName       string    `json:"siteName"`
	Type           JobType   `json:"type"`
	Description    string    `json:"description"`
	Materials      []string  `json:"materials"`
	MapIncluded    bool      `json:"mapIncluded"`
	Attachments    []string  `json:"attachments"`
	ReceivedAt     time.Time `json:"receivedAt"`
	ProcessedJobID string    `json:"processedJobId,omitempty"`
}
