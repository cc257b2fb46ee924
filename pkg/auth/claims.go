package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenClaims represents the typed JWT handed to storefront clients.
// The registered subject carries the storefront session id.
type SessionTokenClaims struct {
	jwt.RegisteredClaims
}

// SessionID returns the storefront session the token was minted for.
func (c *SessionTokenClaims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
