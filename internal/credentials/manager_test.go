package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"invoice-vault-go/internal/models"
)

type fakeCredStore struct {
	cred    *models.Credential
	loadErr error
	saveErr error
	saved   []*models.Credential
}

func (f *fakeCredStore) Load(ctx context.Context) (*models.Credential, error) {
	return f.cred, f.loadErr
}

func (f *fakeCredStore) Save(ctx context.Context, cred *models.Credential) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cred)
	f.cred = cred
	return nil
}

func (f *fakeCredStore) Clear(ctx context.Context) error {
	f.cred = nil
	return nil
}

type fakeRefresher struct {
	result *models.Credential
	err    error
	calls  int
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*models.Credential, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, f.err
}

func newTestManager(store Store, refresher Refresher, now time.Time) *Manager {
	m := NewManager(store, refresher)
	m.now = func() time.Time { return now }
	return m
}

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

func TestGetValidNoCredential(t *testing.T) {
	m := newTestManager(&fakeCredStore{}, &fakeRefresher{}, time.Now())

	_, err := m.GetValid(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetValidReturnsUnexpiredCredential(t *testing.T) {
	now := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)
	stored := &models.Credential{
		Principal:   models.DefaultPrincipal,
		AccessToken: "access-1",
		ExpiresAt:   millis(now.Add(time.Hour)),
	}
	refresher := &fakeRefresher{}
	m := newTestManager(&fakeCredStore{cred: stored}, refresher, now)

	cred, err := m.GetValid(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, 0, refresher.calls)
}

func TestGetValidTreatsNilExpiryAsValid(t *testing.T) {
	stored := &models.Credential{Principal: models.DefaultPrincipal, AccessToken: "access-1"}
	refresher := &fakeRefresher{}
	m := newTestManager(&fakeCredStore{cred: stored}, refresher, time.Now())

	cred, err := m.GetValid(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, 0, refresher.calls)
}

func TestGetValidRefreshesExpiredCredential(t *testing.T) {
	now := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)
	store := &fakeCredStore{cred: &models.Credential{
		Principal:    models.DefaultPrincipal,
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Scope:        "scope-a scope-b",
		ExpiresAt:    millis(now.Add(-time.Minute)),
	}}
	refresher := &fakeRefresher{result: &models.Credential{
		AccessToken: "fresh",
		TokenType:   "Bearer",
		ExpiresAt:   millis(now.Add(time.Hour)),
	}}
	m := newTestManager(store, refresher, now)

	cred, err := m.GetValid(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "fresh", cred.AccessToken)

	// The missing refresh token and scope carry over from the old record.
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, "scope-a scope-b", cred.Scope)
	assert.Equal(t, models.DefaultPrincipal, cred.Principal)

	// The refreshed credential was persisted.
	if assert.Len(t, store.saved, 1) {
		assert.Equal(t, "fresh", store.saved[0].AccessToken)
	}
}

func TestGetValidExpiredWithoutRefreshToken(t *testing.T) {
	now := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)
	store := &fakeCredStore{cred: &models.Credential{
		Principal:   models.DefaultPrincipal,
		AccessToken: "stale",
		ExpiresAt:   millis(now.Add(-time.Minute)),
	}}
	refresher := &fakeRefresher{}
	m := newTestManager(store, refresher, now)

	_, err := m.GetValid(context.Background())
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.Equal(t, 0, refresher.calls)
}

func TestGetValidRefreshFailureLeavesStoreUntouched(t *testing.T) {
	now := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)
	store := &fakeCredStore{cred: &models.Credential{
		Principal:    models.DefaultPrincipal,
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    millis(now.Add(-time.Minute)),
	}}
	m := newTestManager(store, &fakeRefresher{err: errors.New("invalid_grant")}, now)

	_, err := m.GetValid(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Contains(t, err.Error(), "invalid_grant")

	// Nothing was written; the stale record survives for inspection.
	assert.Empty(t, store.saved)
	assert.Equal(t, "stale", store.cred.AccessToken)
}

func TestTokenSource(t *testing.T) {
	now := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)
	expiry := now.Add(time.Hour)
	store := &fakeCredStore{cred: &models.Credential{
		Principal:    models.DefaultPrincipal,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiresAt:    millis(expiry),
	}}
	m := newTestManager(store, &fakeRefresher{}, now)

	token, err := m.Token()
	assert.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, expiry.UnixMilli(), token.Expiry.UnixMilli())
}

func TestAuthorizeAndRevoke(t *testing.T) {
	store := &fakeCredStore{}
	m := newTestManager(store, &fakeRefresher{}, time.Now())

	cred := &models.Credential{Principal: models.DefaultPrincipal, AccessToken: "access-1"}
	assert.NoError(t, m.Authorize(context.Background(), cred))
	assert.Equal(t, "access-1", store.cred.AccessToken)

	assert.NoError(t, m.Revoke(context.Background()))
	assert.Nil(t, store.cred)

	_, err := m.GetValid(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
