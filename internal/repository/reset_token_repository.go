package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/priazovimpact/auth-service/internal/domain"
	"github.com/priazovimpact/auth-service/internal/observability"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

type ResetTokenRepository interface {
	// Upsert stores the principal's sole reset token, replacing any
	// existing one in a single statement.
	Upsert(ctx context.Context, principalID, token string, expiresAt time.Time) error
	// FindValid returns the token row only if it is unexpired.
	FindValid(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type GormResetTokenRepository struct{ db *gorm.DB }

func NewResetTokenRepository(db *gorm.DB) ResetTokenRepository {
	return &GormResetTokenRepository{db: db}
}

func (r *GormResetTokenRepository) Upsert(ctx context.Context, principalID, token string, expiresAt time.Time) error {
	row := &domain.PasswordResetToken{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "principal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at"}),
	}).Create(row).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "reset_token", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "reset_token", "upsert", "success")
	return nil
}

func (r *GormResetTokenRepository) FindValid(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	var row domain.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, time.Now()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "reset_token", "find_valid", "not_found")
			return nil, ErrResetTokenNotFound
		}
		observability.RecordRepositoryOperation(ctx, "reset_token", "find_valid", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "reset_token", "find_valid", "success")
	return &row, nil
}

func (r *GormResetTokenRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.PasswordResetToken{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "reset_token", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "reset_token", "delete", "success")
	return nil
}

func (r *GormResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&domain.PasswordResetToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "reset_token", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "reset_token", "delete_expired", "success")
	return res.RowsAffected, nil
}
