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

// RevokedTokenRepository is the denylist written at logout. Entries keep
// the token's own expiry so the sweeper can drop them once the signature
// would no longer verify anyway.
type RevokedTokenRepository interface {
	Add(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type GormRevokedTokenRepository struct{ db *gorm.DB }

func NewRevokedTokenRepository(db *gorm.DB) RevokedTokenRepository {
	return &GormRevokedTokenRepository{db: db}
}

func (r *GormRevokedTokenRepository) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	row := &domain.RevokedToken{
		ID:        uuid.NewString(),
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}
	// Logout is idempotent: revoking an already-revoked token is a no-op.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "revoked_token", "add", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "revoked_token", "add", "success")
	return nil
}

func (r *GormRevokedTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var row domain.RevokedToken
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "revoked_token", "is_revoked", "not_found")
			return false, nil
		}
		observability.RecordRepositoryOperation(ctx, "revoked_token", "is_revoked", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "revoked_token", "is_revoked", "success")
	return true, nil
}

func (r *GormRevokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&domain.RevokedToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "revoked_token", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "revoked_token", "delete_expired", "success")
	return res.RowsAffected, nil
}
