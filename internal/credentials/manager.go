package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"invoice-vault-go/internal/models"
)

var (
	// ErrUnauthenticated means no credential has ever been stored.
	ErrUnauthenticated = errors.New("no stored credential")

	// ErrCredentialExpired means the credential expired and no refresh
	// token is available to renew it.
	ErrCredentialExpired = errors.New("credential expired and no refresh token available")

	// ErrRefreshFailed wraps a rejected refresh exchange. The stored
	// record is left untouched in that case.
	ErrRefreshFailed = errors.New("credential refresh failed")
)

// Manager guarantees callers always receive a non-expired credential.
// The load-refresh-save sequence runs under a lock so concurrent refreshes
// cannot clobber the single stored record.
type Manager struct {
	store     Store
	refresher Refresher

	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a credential manager over the given store and refresher.
func NewManager(store Store, refresher Refresher) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		now:       time.Now,
	}
}

// GetValid returns the stored credential, refreshing and persisting it
// first when its expiry has passed.
func (m *Manager) GetValid(ctx context.Context) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrUnauthenticated
	}

	if !cred.Expired(m.now()) {
		return cred, nil
	}

	if cred.RefreshToken == "" {
		return nil, ErrCredentialExpired
	}

	fresh, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	// Some endpoints omit the refresh token on renewal; carry the old
	// one forward so the credential stays renewable.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	fresh.Principal = cred.Principal
	if fresh.Scope == "" {
		fresh.Scope = cred.Scope
	}
	fresh.CreatedAt = cred.CreatedAt

	if err := m.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	logrus.Info("Credential refreshed and persisted")
	return fresh, nil
}

// Authorize stores the credential obtained from a first successful
// authorization, replacing any previous record.
func (m *Manager) Authorize(ctx context.Context, cred *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(ctx, cred)
}

// Revoke clears the stored credential.
func (m *Manager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Clear(ctx)
}

// Token implements oauth2.TokenSource so Google API clients can be built
// directly on top of the manager.
func (m *Manager) Token() (*oauth2.Token, error) {
	cred, err := m.GetValid(context.Background())
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
	}
	if cred.ExpiresAt != nil {
		token.Expiry = time.UnixMilli(*cred.ExpiresAt)
	}
	return token, nil
}

var _ oauth2.TokenSource = (*Manager)(nil)
