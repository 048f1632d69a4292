package credentials

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"invoice-vault-go/internal/models"
)

// Refresher exchanges a refresh token for a fresh token set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.Credential, error)
}

// OAuthRefresher performs the refresh exchange against the configured
// OAuth2 endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
}

// NewOAuthRefresher creates a refresher for the given OAuth2 client config.
func NewOAuthRefresher(config *oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{config: config}
}

// Refresh runs one refresh exchange. The returned credential carries
// whatever refresh token the endpoint issued, which may be empty.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*models.Credential, error) {
	source := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return FromToken(token, strings.Join(r.config.Scopes, " ")), nil
}

// FromToken converts an oauth2 token into the stored credential shape.
func FromToken(token *oauth2.Token, scope string) *models.Credential {
	cred := &models.Credential{
		Principal:    models.DefaultPrincipal,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        scope,
	}
	if !token.Expiry.IsZero() {
		millis := token.Expiry.UnixMilli()
		cred.ExpiresAt = &millis
	}
	return cred
}
