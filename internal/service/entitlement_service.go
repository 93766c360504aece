package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/repository"
)

// UnlimitedCredits 无限订阅账户的剩余额度
const UnlimitedCredits = -1

type EntitlementService struct {
	accountRepo *repository.AccountRepository
	now         func() time.Time
}

func NewEntitlementService(accountRepo *repository.AccountRepository) *EntitlementService {
	return &EntitlementService{
		accountRepo: accountRepo,
		now:         time.Now,
	}
}

// CheckCapacity 检查账户是否还能生成，只读
// 账户不存在返回 (false, 0)，无限订阅返回 (true, -1)
func (s *EntitlementService) CheckCapacity(ctx context.Context, email string) (bool, int, error) {
	account, err := s.accountRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, 0, nil
		}
		return false, 0, err
	}

	ok, remaining := capacityOf(account, s.now())
	return ok, remaining, nil
}

// GetCapacityInfo 额度信息，供后台展示
func (s *EntitlementService) GetCapacityInfo(ctx context.Context, email string) (*dto.CapacityInfo, error) {
	ok, remaining, err := s.CheckCapacity(ctx, email)
	if err != nil {
		return nil, err
	}
	return newCapacityInfo(ok, remaining), nil
}

// capacityOf 过期的无限订阅按普通余额计算
func capacityOf(account *model.Account, now time.Time) (bool, int) {
	if account.UnlimitedActive(now) {
		return true, UnlimitedCredits
	}
	return account.Credits > 0, account.Credits
}

func capacityInfoOf(account *model.Account, now time.Time) *dto.CapacityInfo {
	return newCapacityInfo(capacityOf(account, now))
}

func newCapacityInfo(ok bool, remaining int) *dto.CapacityInfo {
	return &dto.CapacityInfo{
		HasCapacity: ok,
		Remaining:   remaining,
		Unlimited:   remaining == UnlimitedCredits,
	}
}
