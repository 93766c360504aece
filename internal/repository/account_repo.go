package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/applysmartuk/statement_server/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *AccountRepository) WithTx(tx *gorm.DB) *AccountRepository {
	return &AccountRepository{db: tx}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Ensure 账户不存在时以零余额创建，已存在则保持不变
func (r *AccountRepository) Ensure(ctx context.Context, email string) (*model.Account, error) {
	account := model.Account{Email: email}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&account).Error
	if err != nil {
		return nil, err
	}
	return r.GetByEmail(ctx, email)
}

// IncrementCredits 相对增加余额
func (r *AccountRepository) IncrementCredits(ctx context.Context, email string, n int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits + ?", n),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecrementCredits 条件扣减，余额不足时不修改任何行并返回 false
func (r *AccountRepository) DecrementCredits(ctx context.Context, email string, n int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("email = ? AND credits >= ?", email, n).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - ?", n),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *AccountRepository) SetUnlimited(ctx context.Context, email string, expiresAt *time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Account{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"is_unlimited":         true,
			"unlimited_expires_at": expiresAt,
			"updated_at":           time.Now(),
		}).Error
}

func (r *AccountRepository) ClearUnlimited(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).Model(&model.Account{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"is_unlimited":         false,
			"unlimited_expires_at": nil,
			"updated_at":           time.Now(),
		}).Error
}

// ClearExpiredUnlimited 清除已过期的无限订阅标记
func (r *AccountRepository) ClearExpiredUnlimited(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Account{}).
		Where("is_unlimited = ? AND unlimited_expires_at IS NOT NULL AND unlimited_expires_at <= ?", true, now).
		Updates(map[string]interface{}{
			"is_unlimited":         false,
			"unlimited_expires_at": nil,
			"updated_at":           now,
		})
	return result.RowsAffected, result.Error
}

func (r *AccountRepository) List(ctx context.Context, page, pageSize int) ([]model.Account, int64, error) {
	var accounts []model.Account
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Account{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&accounts).Error
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}
