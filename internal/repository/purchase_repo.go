package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *PurchaseRepository) WithTx(tx *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: tx}
}

func (r *PurchaseRepository) Create(ctx context.Context, purchase *model.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *PurchaseRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *PurchaseRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		Order("purchased_at DESC").
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// TransitionStatus 条件状态迁移，仅当当前状态为 from 时生效
func (r *PurchaseRepository) TransitionStatus(ctx context.Context, sessionID, from, to string) (bool, error) {
	return r.transition(ctx, sessionID, []string{from}, to)
}

// Complete 支付确认：pending 或已被超时清理标记为 failed 的订单都迁移到 completed
// completed 和 refunded 保持不变
func (r *PurchaseRepository) Complete(ctx context.Context, sessionID string) (bool, error) {
	return r.transition(ctx, sessionID,
		[]string{model.PurchaseStatusPending, model.PurchaseStatusFailed},
		model.PurchaseStatusCompleted)
}

func (r *PurchaseRepository) transition(ctx context.Context, sessionID string, from []string, to string) (bool, error) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	if to == model.PurchaseStatusCompleted {
		fields["completed_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("stripe_session_id = ? AND status IN ?", sessionID, from).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PurchaseRepository) SetSubscriptionID(ctx context.Context, sessionID, subscriptionID string) error {
	return r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("stripe_session_id = ?", sessionID).
		Update("stripe_subscription_id", subscriptionID).Error
}

func (r *PurchaseRepository) ListByAccount(ctx context.Context, accountID string) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("purchased_at DESC").
		Find(&purchases).Error
	return purchases, err
}

func (r *PurchaseRepository) CountByPackage(ctx context.Context, packageID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("package_id = ?", packageID).
		Count(&count).Error
	return count, err
}

// FailStalePending 将超时未支付的 pending 订单标记为 failed
func (r *PurchaseRepository) FailStalePending(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("status = ? AND purchased_at < ?", model.PurchaseStatusPending, before).
		Updates(map[string]interface{}{
			"status":     model.PurchaseStatusFailed,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
