package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentStatusCompleted is the only terminal document status produced by
// the current pipeline. The column exists so partial states can be added
// without a migration.
const DocumentStatusCompleted = "completed"

// ProcessedDocument records one archived attachment. It is created exactly
// once, after the archive upload and ledger append both succeeded, and is
// immutable afterwards. EmailID doubles as the deduplication key for scans.
type ProcessedDocument struct {
	ID               uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	EmailID          string         `json:"email_id" gorm:"type:varchar(255);not null;index"`
	MessageID        string         `json:"message_id" gorm:"type:varchar(255)"`
	Sender           string         `json:"sender" gorm:"type:varchar(255);not null"`
	SenderName       string         `json:"sender_name" gorm:"type:varchar(255)"`
	Subject          string         `json:"subject" gorm:"type:text"`
	InvoiceNumber    *string        `json:"invoice_number" gorm:"type:varchar(64)"`
	EmailDate        time.Time      `json:"email_date"`
	Filename         string         `json:"filename" gorm:"type:varchar(255);not null"`
	OriginalFilename string         `json:"original_filename" gorm:"type:varchar(255)"`
	ArchiveFileID    string         `json:"archive_file_id" gorm:"type:varchar(255);not null"`
	ArchiveURL       string         `json:"archive_url" gorm:"type:text"`
	LedgerID         string         `json:"ledger_id" gorm:"type:varchar(255)"`
	LedgerRow        *int64         `json:"ledger_row"`
	SizeLabel        string         `json:"size_label" gorm:"type:varchar(32)"`
	MIMEType         string         `json:"mime_type" gorm:"type:varchar(128)"`
	Status           string         `json:"status" gorm:"type:varchar(32);not null"`
	CreatedAt        time.Time      `json:"created_at"`
	DeletedAt        gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for ProcessedDocument
func (ProcessedDocument) TableName() string {
	return "processed_documents"
}
