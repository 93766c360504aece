package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
)

// UsageRepository 只提供追加和查询
type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Create(ctx context.Context, record *model.UsageRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *UsageRepository) ListByAccount(ctx context.Context, accountID string, page, pageSize int) ([]model.UsageRecord, int64, error) {
	var records []model.UsageRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.UsageRecord{}).Where("account_id = ?", accountID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("used_at DESC").Offset(offset).Limit(pageSize).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *UsageRepository) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.UsageRecord{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(credits_used), 0)").
		Scan(&total).Error
	return total, err
}
