package auth

import "errors"

var (
	// ErrTokenInvalid indicates a token that is missing, malformed, expired,
	// or signed with the wrong secret. Handlers surface every flavour as 401.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrSessionRevoked indicates a structurally valid refresh token that no
	// longer matches the one stored for the user: it was rotated away,
	// revoked by logout, or never issued.
	ErrSessionRevoked = errors.New("session revoked")
)
