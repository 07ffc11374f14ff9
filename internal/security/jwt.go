package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/priazovimpact/auth-service/internal/domain"
)

// Validation failures are typed so observability can distinguish them;
// callers must treat every one of them as "unauthenticated".
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenClaims    = errors.New("token issuer or audience mismatch")
)

type Claims struct {
	TokenType string      `json:"token_type"`
	Email     string      `json:"email,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access/refresh tokens. The two token
// types are keyed independently so compromise of one secret cannot
// forge the other.
type TokenCodec struct {
	issuer        string
	audience      string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenCodec(issuer, audience, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		issuer:        issuer,
		audience:      audience,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess mints a short-lived access token carrying the principal's
// email and role claims.
func (c *TokenCodec) IssueAccess(principalID, email string, role domain.Role) (string, error) {
	claims := Claims{
		TokenType: "access",
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   principalID,
			Audience:  []string{c.audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(c.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
}

// IssueRefresh mints a long-lived refresh token carrying only the
// principal id.
func (c *TokenCodec) IssueRefresh(principalID string) (string, error) {
	claims := Claims{
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   principalID,
			Audience:  []string{c.audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(c.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
}

func (c *TokenCodec) ValidateAccess(raw string) (*Claims, error) {
	return c.validate(raw, c.accessSecret, "access")
}

func (c *TokenCodec) ValidateRefresh(raw string) (*Claims, error) {
	return c.validate(raw, c.refreshSecret, "refresh")
}

// validate verifies signature, issuer, audience and expiry. Expiry is
// exact: no clock-skew leeway.
func (c *TokenCodec) validate(raw string, secret []byte, tokenType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenSignature
		}
		return secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithAudience(c.audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, classifyJWTError(err)
	}
	if !tok.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != tokenType {
		return nil, ErrTokenClaims
	}
	return claims, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrTokenSignature):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenClaims
	default:
		return ErrTokenMalformed
	}
}
