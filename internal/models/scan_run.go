package models

import "time"

// Scan run statuses. Every run starts in RunStatusStarted and is finalized
// exactly once as completed or failed.
const (
	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ScanRun tracks one orchestration invocation.
type ScanRun struct {
	ID                 uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Status             string     `json:"status" gorm:"type:varchar(32);not null;index"`
	EmailsProcessed    int        `json:"emails_processed"`
	DocumentsProcessed int        `json:"documents_processed"`
	ErrorsCount        int        `json:"errors_count"`
	ErrorDetail        *string    `json:"error_detail" gorm:"type:text"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
}

// TableName specifies the table name for ScanRun
func (ScanRun) TableName() string {
	return "scan_runs"
}
