package models

import "time"

// JobDocument is an immutable artifact record attached to a job. Documents
// are never edited in place; a replacement is a new row.
type JobDocument struct {
	ID         string       `json:"id"`
	JobID      string       `json:"jobId"`
	Type       DocumentType `json:"type"`
	Name       string       `json:"name"`
	ObjectPath string       `json:"objectPath"`
	SHA256     string       `json:"sha256"`
	Version    int          `json:"version"`
	UploadedBy string       `json:"uploadedBy"`
	UploadedAt time.Time    `json:"uploadedAt"`
}

// DocumentType represents the kind of artifact attached to a job
type DocumentType string

const (
	DocumentTypeJobCard               DocumentType = "JOB_CARD"
	DocumentTypeJobOffer              DocumentType = "JOB_OFFER"
	DocumentTypeMaterialsList         DocumentType = "MATERIALS_LIST"
	DocumentTypeMapRoute              DocumentType = "MAP_ROUTE"
	DocumentTypeSitePhoto             DocumentType = "SITE_PHOTO"
	DocumentTypeSiteNote              DocumentType = "SITE_NOTE"
	DocumentTypeDiaryPDF              DocumentType = "DIARY_PDF"
	DocumentTypeInvoice               DocumentType = "INVOICE"
	DocumentTypeCompletionCertificate DocumentType = "COMPLETION_CERTIFICATE"
	DocumentTypeFinalPacket           DocumentType = "FINAL_PACKET"
)
