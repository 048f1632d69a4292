package models

import "time"

// StatsResponse summarizes archive activity for operators.
type StatsResponse struct {
	TotalDocuments int64     `json:"total_documents"`
	UniqueSenders  int64     `json:"unique_senders"`
	RecentRuns     []ScanRun `json:"recent_runs"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
