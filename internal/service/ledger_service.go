package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/repository"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
)

// LedgerService 余额扣减与充值，所有余额变更都是单条相对更新语句
type LedgerService struct {
	accountRepo *repository.AccountRepository
	now         func() time.Time
}

func NewLedgerService(accountRepo *repository.AccountRepository) *LedgerService {
	return &LedgerService{
		accountRepo: accountRepo,
		now:         time.Now,
	}
}

// WithTx 返回绑定到事务的账本
func (s *LedgerService) WithTx(tx *gorm.DB) *LedgerService {
	return &LedgerService{
		accountRepo: s.accountRepo.WithTx(tx),
		now:         s.now,
	}
}

// Debit 扣减 n 次额度，无限订阅账户不扣减
func (s *LedgerService) Debit(ctx context.Context, email string, n int) error {
	if n <= 0 {
		return ErrInvalidAmount
	}
	email = normalizeEmail(email)

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if account.UnlimitedActive(s.now()) {
		return nil
	}

	ok, err := s.accountRepo.DecrementCredits(ctx, email, n)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientCredits
	}
	return nil
}

// Credit 增加 n 次额度，账户不存在时先以零余额创建
func (s *LedgerService) Credit(ctx context.Context, email string, n int) error {
	if n <= 0 {
		return ErrInvalidAmount
	}
	email = normalizeEmail(email)

	if _, err := s.accountRepo.Ensure(ctx, email); err != nil {
		return err
	}

	ok, err := s.accountRepo.IncrementCredits(ctx, email, n)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	return nil
}

// ActivateSubscription 开通无限订阅，expiresAt 为 nil 表示直到取消前一直有效
func (s *LedgerService) ActivateSubscription(ctx context.Context, email string, expiresAt *time.Time) error {
	email = normalizeEmail(email)

	if _, err := s.accountRepo.Ensure(ctx, email); err != nil {
		return err
	}
	return s.accountRepo.SetUnlimited(ctx, email, expiresAt)
}

// DeactivateSubscription 取消无限订阅
func (s *LedgerService) DeactivateSubscription(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	if _, err := s.accountRepo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return s.accountRepo.ClearUnlimited(ctx, email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
