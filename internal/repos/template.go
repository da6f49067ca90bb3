package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/types"
)

type TemplateRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AdTemplate, error)
	List(ctx context.Context, tx *gorm.DB, filter types.TemplateFilter) ([]types.AdTemplate, error)
	UpsertByTitle(ctx context.Context, tx *gorm.DB, tmpl *types.AdTemplate) error
}

type templateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTemplateRepo(db *gorm.DB, baseLog *logger.Logger) TemplateRepo {
	return &templateRepo{db: db, log: baseLog.With("repo", "TemplateRepo")}
}

func (r *templateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AdTemplate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.AdTemplate
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *templateRepo) List(ctx context.Context, tx *gorm.DB, filter types.TemplateFilter) ([]types.AdTemplate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.AdTemplate{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var results []types.AdTemplate
	if err := q.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpsertByTitle keeps the seed catalog idempotent across boots.
func (r *templateRepo) UpsertByTitle(ctx context.Context, tx *gorm.DB, tmpl *types.AdTemplate) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var existing types.AdTemplate
	err := transaction.WithContext(ctx).
		Where("title = ?", tmpl.Title).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return transaction.WithContext(ctx).Create(tmpl).Error
	}
	if err != nil {
		return err
	}
	tmpl.ID = existing.ID
	return transaction.WithContext(ctx).Model(&existing).Updates(tmpl).Error
}
