package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/models"
)

func testConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "vidtube-test",
	}
}

func newTestService(t *testing.T, store CredentialStore) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testConfig(), store)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func TestIssueAndVerifyAccess(t *testing.T) {
	store := NewInMemoryCredentialStore()
	store.Put(models.User{ID: "user-1", Handle: "ana"})
	svc := newTestService(t, store)

	pair, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", pair)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	userID, err := svc.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected subject user-1 got %q", userID)
	}

	if got := store.StoredRefreshToken("user-1"); got != pair.RefreshToken {
		t.Fatalf("stored refresh token %q does not match issued %q", got, pair.RefreshToken)
	}
}

func TestIssueUnknownUser(t *testing.T) {
	svc := newTestService(t, NewInMemoryCredentialStore())

	if _, err := svc.Issue(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error issuing tokens for unknown user")
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	store := NewInMemoryCredentialStore()
	store.Put(models.User{ID: "user-1"})
	svc := newTestService(t, store)

	pair, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for cross-secret token got %v", err)
	}
}

func TestVerifyAccessExpired(t *testing.T) {
	store := NewInMemoryCredentialStore()
	store.Put(models.User{ID: "user-1"})
	svc := newTestService(t, store)
	svc.NowFunc = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	pair, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.NowFunc = nil
	if _, err := svc.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token got %v", err)
	}
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	store := NewInMemoryCredentialStore()
	store.Put(models.User{ID: "user-1"})
	svc := newTestService(t, store)

	otherCfg := testConfig()
	otherCfg.AccessSecret = "a-completely-different-secret"
	other, err := NewTokenService(otherCfg, store)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	pair, err := other.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong-secret token got %v", err)
	}
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	store := NewInMemoryCredentialStore()
	store.Put(models.User{ID: "user-1"})
	svc := newTestService(t, store)

	first, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Distinct iat so the rotated token differs from the original.
	svc.NowFunc = func() time.Time { return time.Now().Add(time.Second) }

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected a new refresh token after rotation")
	}
	if got := store.StoredRefreshToken("user-1"); got != second.RefreshToken {
		t.Fatalf("store holds %q, expected rotated token", got)
	}

	if _, err := svc.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked replaying old token got %v", err)
	}
}

type outageStore struct {
	*InMemoryCredentialStore
	err error
}

func (s outageStore) FindByID(context.Context, string) (models.User, error) {
	return models.User{}, s.err
}

func TestRefreshStoreOutageIsNotRevocation(t *testing.T) {
	store := NewInMemoryCredentialStore()
	store.Put(models.User{ID: "user-1"})
	svc := newTestService(t, store)

	pair, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	outage := errors.New("connection reset")
	broken := newTestService(t, outageStore{InMemoryCredentialStore: store, err: outage})

	_, err = broken.Refresh(context.Background(), pair.RefreshToken)
	if err == nil {
		t.Fatal("expected error during store outage")
	}
	if errors.Is(err, ErrSessionRevoked) || errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("store outage must not read as a revoked session, got %v", err)
	}
	if !errors.Is(err, outage) {
		t.Fatalf("expected the store error propagated, got %v", err)
	}
}

func TestRevokeBlocksRefresh(t *testing.T) {
	store := NewInMemoryCredentialStore()
	store.Put(models.User{ID: "user-1"})
	svc := newTestService(t, store)

	pair, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.Revoke(context.Background(), "user-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got := store.StoredRefreshToken("user-1"); got != "" {
		t.Fatalf("expected cleared refresh token got %q", got)
	}

	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked after revoke got %v", err)
	}
}

func TestNewTokenServiceValidation(t *testing.T) {
	store := NewInMemoryCredentialStore()

	cases := []struct {
		name   string
		mutate func(*TokenConfig)
	}{
		{"short access secret", func(c *TokenConfig) { c.AccessSecret = "short" }},
		{"short refresh secret", func(c *TokenConfig) { c.RefreshSecret = "short" }},
		{"identical secrets", func(c *TokenConfig) { c.RefreshSecret = c.AccessSecret }},
		{"zero access ttl", func(c *TokenConfig) { c.AccessTTL = 0 }},
		{"zero refresh ttl", func(c *TokenConfig) { c.RefreshTTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewTokenService(cfg, store); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}

	if _, err := NewTokenService(testConfig(), nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
