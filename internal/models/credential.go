package models

import (
	"time"
)

// DefaultPrincipal identifies the single-tenant credential record.
const DefaultPrincipal = "default"

// Credential represents the stored OAuth2 bearer credential. Exactly one
// row exists per principal; refreshes mutate it in place.
type Credential struct {
	Principal    string    `json:"principal" gorm:"primaryKey;type:varchar(64)"`
	AccessToken  string    `json:"-" gorm:"type:text;not null"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	TokenType    string    `json:"token_type" gorm:"type:varchar(32)"`
	Scope        string    `json:"scope" gorm:"type:text"`
	ExpiresAt    *int64    `json:"expires_at"` // epoch millis; nil means unknown or non-expiring
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for Credential
func (Credential) TableName() string {
	return "credentials"
}

// Expired reports whether the credential's expiry has passed at the given
// instant. A credential without an expiry never expires.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return *c.ExpiresAt <= now.UnixMilli()
}
