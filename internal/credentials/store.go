package credentials

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"invoice-vault-go/internal/models"
)

// Store persists the single credential record.
type Store interface {
	Load(ctx context.Context) (*models.Credential, error)
	Save(ctx context.Context, cred *models.Credential) error
	Clear(ctx context.Context) error
}

// GormStore keeps the credential in the relational database, keyed by the
// fixed principal identifier.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a credential store backed by the given database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Load returns the stored credential, or nil when none has been saved yet.
func (s *GormStore) Load(ctx context.Context) (*models.Credential, error) {
	var cred models.Credential
	result := s.db.WithContext(ctx).Where("principal = ?", models.DefaultPrincipal).First(&cred)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load credential: %w", result.Error)
	}
	return &cred, nil
}

// Save upserts the credential record in place.
func (s *GormStore) Save(ctx context.Context, cred *models.Credential) error {
	cred.Principal = models.DefaultPrincipal
	result := s.db.WithContext(ctx).Save(cred)
	if result.Error != nil {
		return fmt.Errorf("failed to save credential: %w", result.Error)
	}
	return nil
}

// Clear removes the credential record. Used on explicit revocation only.
func (s *GormStore) Clear(ctx context.Context) error {
	result := s.db.WithContext(ctx).Where("principal = ?", models.DefaultPrincipal).Delete(&models.Credential{})
	if result.Error != nil {
		return fmt.Errorf("failed to clear credential: %w", result.Error)
	}
	return nil
}
