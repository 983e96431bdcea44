package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// CredentialStore is the slice of user persistence the token service needs:
// loading a user and writing the refresh-token column, nothing else.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, id, refreshToken string) error
}

// TokenConfig carries signing material and lifetimes for both token kinds.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenService issues, verifies, and rotates the JWT pair backing a user
// session. Access tokens are stateless; the refresh token additionally has to
// match the single value stored on the user record, which is what makes
// rotation and revocation effective.
type TokenService struct {
	cfg   TokenConfig
	store CredentialStore

	// NowFunc lets tests control the clock. Defaults to time.Now.
	NowFunc func() time.Time
}

// NewTokenService validates the configuration and binds the service to its
// credential store.
func NewTokenService(cfg TokenConfig, store CredentialStore) (*TokenService, error) {
	if len(cfg.AccessSecret) < 16 || len(cfg.RefreshSecret) < 16 {
		return nil, errors.New("auth: token secrets must be at least 16 characters")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "vidtube"
	}
	if store == nil {
		return nil, errors.New("auth: credential store must not be nil")
	}
	return &TokenService{cfg: cfg, store: store}, nil
}

// Issue signs a fresh access/refresh pair for the user and persists the
// refresh token on the user record, displacing any previous one.
func (s *TokenService) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("auth: user id must be provided")
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("load user for token issue: %w", err)
	}

	now := s.now()

	accessToken, err := s.sign(user.ID, s.cfg.AccessSecret, now, s.cfg.AccessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := s.sign(user.ID, s.cfg.RefreshSecret, now, s.cfg.RefreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.store.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(s.cfg.AccessTTL),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.cfg.RefreshTTL),
	}, nil
}

// VerifyAccess checks the signature, expiry, and issuer of an access token
// and returns the user id carried in the subject claim.
func (s *TokenService) VerifyAccess(token string) (string, error) {
	return s.verify(token, s.cfg.AccessSecret)
}

// Refresh rotates a session: it verifies the presented refresh token, checks
// it is the one currently stored for the user, and issues a brand-new pair.
// The presented token is unusable afterwards, even if resubmitted.
func (s *TokenService) Refresh(ctx context.Context, presented string) (models.TokenPair, error) {
	userID, err := s.verify(presented, s.cfg.RefreshSecret)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.TokenPair{}, fmt.Errorf("%w: unknown subject", ErrSessionRevoked)
		}
		return models.TokenPair{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		return models.TokenPair{}, ErrSessionRevoked
	}

	return s.Issue(ctx, userID)
}

// Revoke clears the stored refresh token, ending the user's ability to
// refresh without logging in again. Outstanding access tokens stay valid
// until their natural expiry.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if err := s.store.SetRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) sign(userID, secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *TokenService) verify(tokenStr, secret string) (string, error) {
	if tokenStr == "" {
		return "", fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Cause retained for logs; callers and clients only see 401.
		return "", fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims.Subject, nil
}

func (s *TokenService) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}
