package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

type AnalysisRepo interface {
	GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.ProductAnalysis, error)
	Save(ctx context.Context, tx *gorm.DB, analysis *types.ProductAnalysis) error
	// Replace deletes any prior row for the product and inserts the new one.
	// Analyses are replaced wholesale, never patched.
	Replace(ctx context.Context, tx *gorm.DB, analysis *types.ProductAnalysis) error
	DeleteByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (r *analysisRepo) GetByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.ProductAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.ProductAnalysis
	if err := transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *analysisRepo) Save(ctx context.Context, tx *gorm.DB, analysis *types.ProductAnalysis) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(analysis).Error
}

func (r *analysisRepo) Replace(ctx context.Context, tx *gorm.DB, analysis *types.ProductAnalysis) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.Where("product_id = ?", analysis.ProductID).
			Delete(&types.ProductAnalysis{}).Error; err != nil {
			return err
		}
		return inner.Create(analysis).Error
	})
}

func (r *analysisRepo) DeleteByProductID(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&types.ProductAnalysis{}).Error
}
