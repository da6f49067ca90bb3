package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

type BrandProfileRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.BrandProfile, error)
}

type brandProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBrandProfileRepo(db *gorm.DB, baseLog *logger.Logger) BrandProfileRepo {
	return &brandProfileRepo{db: db, log: baseLog.With("repo", "BrandProfileRepo")}
}

func (r *brandProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.BrandProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.BrandProfile
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
