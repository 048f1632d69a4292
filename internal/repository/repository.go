package repository

import (
	"fmt"

	"gorm.io/gorm"

	"invoice-vault-go/internal/models"
)

const recentRunsLimit = 10

// Repository is the processing store: scan run bookkeeping, the dedup set,
// and processed document records.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun persists a freshly started scan run.
func (r *Repository) CreateRun(run *models.ScanRun) error {
	result := r.db.Create(run)
	if result.Error != nil {
		return fmt.Errorf("failed to create scan run: %w", result.Error)
	}
	return nil
}

// FinishRun writes the run's terminal state. Called exactly once per run.
func (r *Repository) FinishRun(run *models.ScanRun) error {
	result := r.db.Save(run)
	if result.Error != nil {
		return fmt.Errorf("failed to update scan run: %w", result.Error)
	}
	return nil
}

// ProcessedEmailIDs returns the dedup set of source-email identifiers that
// already have at least one archived document.
func (r *Repository) ProcessedEmailIDs() (map[string]struct{}, error) {
	var ids []string
	result := r.db.Model(&models.ProcessedDocument{}).Distinct().Pluck("email_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load processed email ids: %w", result.Error)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// CreateDocument persists one processed document record.
func (r *Repository) CreateDocument(doc *models.ProcessedDocument) error {
	result := r.db.Create(doc)
	if result.Error != nil {
		return fmt.Errorf("failed to create processed document: %w", result.Error)
	}
	return nil
}

// RecentDocuments returns the newest processed documents, newest first.
func (r *Repository) RecentDocuments(limit int) ([]models.ProcessedDocument, error) {
	var docs []models.ProcessedDocument
	result := r.db.Order("created_at DESC").Limit(limit).Find(&docs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load recent documents: %w", result.Error)
	}
	return docs, nil
}

// Stats aggregates archive totals and the most recent runs.
func (r *Repository) Stats() (*models.StatsResponse, error) {
	var total int64
	if err := r.db.Model(&models.ProcessedDocument{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	var senders int64
	if err := r.db.Model(&models.ProcessedDocument{}).Distinct("sender").Count(&senders).Error; err != nil {
		return nil, fmt.Errorf("failed to count senders: %w", err)
	}

	var runs []models.ScanRun
	if err := r.db.Order("started_at DESC").Limit(recentRunsLimit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent runs: %w", err)
	}

	return &models.StatsResponse{
		TotalDocuments: total,
		UniqueSenders:  senders,
		RecentRuns:     runs,
	}, nil
}
