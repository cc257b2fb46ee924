package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintedToken is a signed session token plus its expiry.
type MintedToken struct {
	Token     string
	ExpiresAt time.Time
}

// MintSessionToken issues a signed JWT bound to the storefront session id.
func MintSessionToken(cfg config.SessionConfig, now time.Time, sessionID string) (MintedToken, error) {
	if cfg.Secret == "" {
		return MintedToken{}, fmt.Errorf("session secret is required")
	}
	if cfg.Issuer == "" {
		return MintedToken{}, fmt.Errorf("session issuer is required")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return MintedToken{}, fmt.Errorf("session id is required")
	}

	expiresAt := now.Add(cfg.TTL())
	claims := SessionTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return MintedToken{}, fmt.Errorf("signing jwt: %w", err)
	}
	return MintedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// ParseSessionToken validates the JWT string and returns typed claims.
func ParseSessionToken(cfg config.SessionConfig, tokenString string) (*SessionTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}

	claims := &SessionTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.SessionID() == "" {
		return nil, fmt.Errorf("session token missing subject")
	}

	return claims, nil
}
