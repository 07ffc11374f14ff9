package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/priazovimpact/auth-service/internal/domain"
	"github.com/priazovimpact/auth-service/internal/observability"
	"github.com/priazovimpact/auth-service/internal/repository"
	"github.com/priazovimpact/auth-service/internal/security"
)

var (
	// ErrInvalidInput means a required request field is missing or
	// malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated covers every credential and token failure. The
	// sub-causes stay distinguishable in metrics only; callers get one
	// uniform outcome so responses leak nothing about which check failed.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// DefaultValidationCacheTTL bounds how stale a memoized signature check
// may be. It must stay well below the access-token TTL.
const DefaultValidationCacheTTL = time.Minute

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email,omitempty"`
}

// AuthService is the login/refresh/logout state machine composing the
// token codec, session store, validation cache and credential hasher.
type AuthService struct {
	codec      *security.TokenCodec
	hasher     *security.PasswordHasher
	principals repository.PrincipalRepository
	sessions   repository.SessionRepository
	denylist   repository.RevokedTokenRepository
	cache      TokenValidationCache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

func NewAuthService(
	codec *security.TokenCodec,
	hasher *security.PasswordHasher,
	principals repository.PrincipalRepository,
	sessions repository.SessionRepository,
	denylist repository.RevokedTokenRepository,
	cache TokenValidationCache,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		codec:      codec,
		hasher:     hasher,
		principals: principals,
		sessions:   sessions,
		denylist:   denylist,
		cache:      cache,
		cacheTTL:   DefaultValidationCacheTTL,
		logger:     logger,
	}
}

// Login verifies the credentials and replaces the principal's session
// with a fresh token pair. Unknown email and wrong password produce the
// same outcome. Password verification runs before any transaction opens;
// bcrypt is too slow to hold a pooled connection across.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	principal, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			observability.RecordAuthLogin("unknown_email")
			s.logger.WarnContext(ctx, "login rejected", "reason", "unknown email")
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !s.hasher.Verify(password, principal.PasswordHash) {
		observability.RecordAuthLogin("bad_password")
		s.logger.WarnContext(ctx, "login rejected", "reason", "bad password", "principal_id", principal.ID)
		return nil, ErrUnauthenticated
	}

	pair, err := s.issuePair(ctx, principal)
	if err != nil {
		observability.RecordAuthLogin("error")
		return nil, err
	}
	observability.RecordAuthLogin("success")
	s.logger.InfoContext(ctx, "login succeeded", "principal_id", principal.ID)
	return pair, nil
}

// Refresh rotates the token pair. A token that verifies cryptographically
// but no longer matches the stored session (superseded) or sits on the
// denylist is rejected; that check is the replay defense, not the codec.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidInput
	}
	v, err := s.validateRefresh(ctx, refreshToken)
	if err != nil {
		observability.RecordAuthRefresh("invalid_token")
		return nil, ErrUnauthenticated
	}
	revoked, err := s.denylist.IsRevoked(ctx, v.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		observability.RecordAuthRefresh("revoked")
		s.logger.WarnContext(ctx, "refresh rejected", "reason", "revoked token", "principal_id", v.PrincipalID)
		return nil, ErrUnauthenticated
	}
	if _, err := s.sessions.FindAndValidate(ctx, v.PrincipalID, refreshToken); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordAuthRefresh("superseded")
			s.logger.WarnContext(ctx, "refresh rejected", "reason", "session missing or superseded", "principal_id", v.PrincipalID)
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	principal, err := s.principals.FindByID(ctx, v.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			observability.RecordAuthRefresh("principal_gone")
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	pair, err := s.issuePair(ctx, principal)
	if err != nil {
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	pair.Email = ""
	observability.RecordAuthRefresh("success")
	s.logger.InfoContext(ctx, "session refreshed", "principal_id", principal.ID)
	return pair, nil
}

// Logout deletes the session and denylists the token's jti for its
// remaining signed lifetime, so a concurrently-cached validation cannot
// resurrect it.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrInvalidInput
	}
	v, err := s.validateRefresh(ctx, refreshToken)
	if err != nil {
		observability.RecordAuthLogout("invalid_token")
		return ErrUnauthenticated
	}
	if err := s.sessions.DeleteByPrincipal(ctx, v.PrincipalID); err != nil {
		return err
	}
	if err := s.denylist.Add(ctx, v.TokenID, v.ExpiresAt); err != nil {
		return err
	}
	observability.RecordAuthLogout("success")
	s.logger.InfoContext(ctx, "logout succeeded", "principal_id", v.PrincipalID)
	return nil
}

// ValidateAccess checks an access token through the memoization cache.
// Used by the auth middleware for protected routes.
func (s *AuthService) ValidateAccess(ctx context.Context, raw string) (*TokenValidation, error) {
	if cached, ok, err := s.cache.Get(ctx, raw); err == nil && ok {
		observability.RecordTokenValidation("access", "cache_hit")
		return cached, nil
	}
	claims, err := s.codec.ValidateAccess(raw)
	if err != nil {
		observability.RecordTokenValidation("access", validationOutcome(err))
		return nil, ErrUnauthenticated
	}
	v := validationFromClaims(claims)
	if err := s.cache.Set(ctx, raw, v, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "token cache set failed", "error", err)
	}
	observability.RecordTokenValidation("access", "success")
	return v, nil
}

func (s *AuthService) validateRefresh(ctx context.Context, raw string) (*TokenValidation, error) {
	if cached, ok, err := s.cache.Get(ctx, raw); err == nil && ok {
		observability.RecordTokenValidation("refresh", "cache_hit")
		return cached, nil
	}
	claims, err := s.codec.ValidateRefresh(raw)
	if err != nil {
		observability.RecordTokenValidation("refresh", validationOutcome(err))
		return nil, err
	}
	v := validationFromClaims(claims)
	if err := s.cache.Set(ctx, raw, v, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "token cache set failed", "error", err)
	}
	observability.RecordTokenValidation("refresh", "success")
	return v, nil
}

func (s *AuthService) issuePair(ctx context.Context, principal *domain.Principal) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(principal.ID, principal.Email, principal.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueRefresh(principal.ID)
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.codec.RefreshTTL())
	if _, err := s.sessions.Replace(ctx, principal.ID, refresh, expiresAt); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, Email: principal.Email}, nil
}

func validationFromClaims(claims *security.Claims) *TokenValidation {
	v := &TokenValidation{
		PrincipalID: claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		TokenID:     claims.ID,
	}
	if claims.ExpiresAt != nil {
		v.ExpiresAt = claims.ExpiresAt.Time
	}
	return v
}

func validationOutcome(err error) string {
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return "expired"
	case errors.Is(err, security.ErrTokenSignature):
		return "signature_mismatch"
	case errors.Is(err, security.ErrTokenClaims):
		return "claims_mismatch"
	default:
		return "malformed"
	}
}
