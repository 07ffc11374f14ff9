package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/priazovimpact/auth-service/internal/domain"
	"github.com/priazovimpact/auth-service/internal/observability"
)

var ErrPrincipalNotFound = errors.New("principal not found")

// PrincipalRepository is the narrow slice of the directory's CRUD layer
// the auth core consumes: lookup plus password-hash mutation.
type PrincipalRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Principal, error)
	FindByID(ctx context.Context, id string) (*domain.Principal, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type GormPrincipalRepository struct{ db *gorm.DB }

func NewPrincipalRepository(db *gorm.DB) PrincipalRepository {
	return &GormPrincipalRepository{db: db}
}

func (r *GormPrincipalRepository) FindByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	var p domain.Principal
	err := r.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "principal", "find_by_email", "not_found")
			return nil, ErrPrincipalNotFound
		}
		observability.RecordRepositoryOperation(ctx, "principal", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "principal", "find_by_email", "success")
	return &p, nil
}

func (r *GormPrincipalRepository) FindByID(ctx context.Context, id string) (*domain.Principal, error) {
	var p domain.Principal
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "principal", "find_by_id", "not_found")
			return nil, ErrPrincipalNotFound
		}
		observability.RecordRepositoryOperation(ctx, "principal", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "principal", "find_by_id", "success")
	return &p, nil
}

func (r *GormPrincipalRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.Principal{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "principal", "update_password_hash", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "principal", "update_password_hash", "not_found")
		return ErrPrincipalNotFound
	}
	observability.RecordRepositoryOperation(ctx, "principal", "update_password_hash", "success")
	return nil
}
