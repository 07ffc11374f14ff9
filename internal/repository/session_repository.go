package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priazovimpact/auth-service/internal/domain"
	"github.com/priazovimpact/auth-service/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	// Replace deletes any existing session for the principal and inserts
	// the new one, atomically. Concurrent replacements for the same
	// principal serialize on the row; last writer wins, rows never lost.
	Replace(ctx context.Context, principalID, refreshToken string, expiresAt time.Time) (*domain.Session, error)
	FindByPrincipal(ctx context.Context, principalID string) (*domain.Session, error)
	// FindAndValidate returns the principal's session only if it exists,
	// is unexpired, and stores exactly the presented token. A superseded
	// token fails here even though its signature still verifies.
	FindAndValidate(ctx context.Context, principalID, presentedToken string) (*domain.Session, error)
	DeleteByPrincipal(ctx context.Context, principalID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Replace(ctx context.Context, principalID, refreshToken string, expiresAt time.Time) (*domain.Session, error) {
	session := &domain.Session{
		ID:           uuid.NewString(),
		PrincipalID:  principalID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("principal_id = ?", principalID).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "replace", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "replace", "success")
	return session, nil
}

func (r *GormSessionRepository) FindByPrincipal(ctx context.Context, principalID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("principal_id = ?", principalID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_by_principal", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_by_principal", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_by_principal", "success")
	return &s, nil
}

func (r *GormSessionRepository) FindAndValidate(ctx context.Context, principalID, presentedToken string) (*domain.Session, error) {
	s, err := r.FindByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if s.ExpiresAt.Before(time.Now()) {
		observability.RecordRepositoryOperation(ctx, "session", "find_and_validate", "expired")
		return nil, ErrSessionNotFound
	}
	if s.RefreshToken != presentedToken {
		observability.RecordRepositoryOperation(ctx, "session", "find_and_validate", "token_mismatch")
		return nil, ErrSessionNotFound
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_and_validate", "success")
	return s, nil
}

func (r *GormSessionRepository) DeleteByPrincipal(ctx context.Context, principalID string) error {
	err := r.db.WithContext(ctx).Where("principal_id = ?", principalID).Delete(&domain.Session{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete_by_principal", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_by_principal", "success")
	return nil
}

func (r *GormSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_expired", "success")
	return res.RowsAffected, nil
}
