package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/priazovimpact/auth-service/internal/observability"
	"github.com/priazovimpact/auth-service/internal/repository"
	"github.com/priazovimpact/auth-service/internal/security"
)

var (
	// ErrResetTokenInvalid covers both unknown and expired codes.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrSamePassword rejects a reset that keeps the current password.
	ErrSamePassword = errors.New("new password matches the previous one")
)

const (
	resetCodeLength = 6
	resetTokenTTL   = time.Hour
)

// PasswordResetService runs the forgot/reset request pair, decoupled
// from the session store except for the forced logout on success.
type PasswordResetService struct {
	hasher      *security.PasswordHasher
	principals  repository.PrincipalRepository
	resetTokens repository.ResetTokenRepository
	sessions    repository.SessionRepository
	mailer      EmailSender
	logger      *slog.Logger
}

func NewPasswordResetService(
	hasher *security.PasswordHasher,
	principals repository.PrincipalRepository,
	resetTokens repository.ResetTokenRepository,
	sessions repository.SessionRepository,
	mailer EmailSender,
	logger *slog.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		hasher:      hasher,
		principals:  principals,
		resetTokens: resetTokens,
		sessions:    sessions,
		mailer:      mailer,
		logger:      logger,
	}
}

// Request generates and mails a reset code. An unknown email succeeds
// with no side effect so the endpoint cannot be used to enumerate
// registered addresses.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	if email == "" {
		return ErrInvalidInput
	}
	principal, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			observability.RecordPasswordReset("request", "unknown_email")
			s.logger.WarnContext(ctx, "reset requested for unregistered email")
			return nil
		}
		return err
	}

	code := uuid.NewString()[:resetCodeLength]
	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.resetTokens.Upsert(ctx, principal.ID, code, expiresAt); err != nil {
		observability.RecordPasswordReset("request", "error")
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, principal.Email, code); err != nil {
		observability.RecordPasswordReset("request", "delivery_failed")
		return fmt.Errorf("send reset email: %w", err)
	}
	observability.RecordPasswordReset("request", "success")
	s.logger.InfoContext(ctx, "reset code issued", "principal_id", principal.ID)
	return nil
}

// Reset consumes a code exactly once: replaces the hash, deletes the
// code, and deletes the principal's live session so every device has to
// log in again with the new password.
func (s *PasswordResetService) Reset(ctx context.Context, code, newPassword string) error {
	if code == "" || newPassword == "" {
		return ErrInvalidInput
	}
	token, err := s.resetTokens.FindValid(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			observability.RecordPasswordReset("reset", "invalid_token")
			s.logger.WarnContext(ctx, "reset rejected", "reason", "invalid or expired code")
			return ErrResetTokenInvalid
		}
		return err
	}
	principal, err := s.principals.FindByID(ctx, token.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			observability.RecordPasswordReset("reset", "principal_gone")
			return repository.ErrPrincipalNotFound
		}
		return err
	}
	if s.hasher.Verify(newPassword, principal.PasswordHash) {
		observability.RecordPasswordReset("reset", "same_password")
		return ErrSamePassword
	}

	// Hashing happens before the mutations below; it is far too slow to
	// run inside a transaction.
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.principals.UpdatePasswordHash(ctx, principal.ID, hash); err != nil {
		observability.RecordPasswordReset("reset", "error")
		return err
	}
	if err := s.resetTokens.Delete(ctx, token.ID); err != nil {
		return err
	}
	if err := s.sessions.DeleteByPrincipal(ctx, principal.ID); err != nil {
		return err
	}
	if err := s.mailer.SendPasswordChanged(ctx, principal.Email); err != nil {
		observability.RecordPasswordReset("reset", "delivery_failed")
		return fmt.Errorf("send password changed notice: %w", err)
	}
	observability.RecordPasswordReset("reset", "success")
	s.logger.InfoContext(ctx, "password reset", "principal_id", principal.ID)
	return nil
}
