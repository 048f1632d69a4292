package models

import "time"

// EmailDetails is the transient view of a candidate email returned by a
// mail source. It is never persisted.
type EmailDetails struct {
	ID          string           `json:"id"`
	MessageID   string           `json:"message_id"`
	Subject     string           `json:"subject"`
	From        string           `json:"from"`
	Date        time.Time        `json:"date"`
	Attachments []AttachmentInfo `json:"attachments"`
}

// AttachmentInfo describes one attachment without its payload.
type AttachmentInfo struct {
	Filename     string `json:"filename"`
	AttachmentID string `json:"attachment_id"`
	MIMEType     string `json:"mime_type"`
	Size         int64  `json:"size"` // 0 when the source does not report it
}

// ArchiveRef is the stable reference returned by an archive sink after a
// successful upload.
type ArchiveRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DocumentSummary is the lightweight per-attachment record included in a
// scan result.
type DocumentSummary struct {
	EmailID   string `json:"email_id"`
	Filename  string `json:"filename"`
	ArchiveID string `json:"archive_id"`
	LedgerRow *int64 `json:"ledger_row"`
}

// ScanResult aggregates one scan cycle: emails successfully processed,
// ordered document summaries, and one error string per failed email.
type ScanResult struct {
	ProcessedCount int               `json:"processed_count"`
	Documents      []DocumentSummary `json:"documents"`
	Errors         []string          `json:"errors"`
}
