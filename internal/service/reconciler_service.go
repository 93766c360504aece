package service

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/repository"
)

var ErrPurchaseNotFound = errors.New("purchase not found")

// ReconcilerService 将支付平台 webhook 事件转换为账本变更
type ReconcilerService struct {
	db           *gorm.DB
	purchaseRepo *repository.PurchaseRepository
	packageRepo  *repository.PackageRepository
	accountRepo  *repository.AccountRepository
	ledger       *LedgerService
	guard        EventGuard
}

// NewReconcilerService guard 可为 nil，此时只依赖数据库状态迁移做幂等
func NewReconcilerService(
	db *gorm.DB,
	purchaseRepo *repository.PurchaseRepository,
	packageRepo *repository.PackageRepository,
	accountRepo *repository.AccountRepository,
	ledger *LedgerService,
	guard EventGuard,
) *ReconcilerService {
	return &ReconcilerService{
		db:           db,
		purchaseRepo: purchaseRepo,
		packageRepo:  packageRepo,
		accountRepo:  accountRepo,
		ledger:       ledger,
		guard:        guard,
	}
}

// HandleEvent 处理一个 webhook 事件
// 只有存储错误会返回，调用方据此返回 500 让支付平台重试
func (s *ReconcilerService) HandleEvent(ctx context.Context, event *payment.Event) error {
	claimed := false
	if s.guard != nil && event.ID != "" {
		ok, err := s.guard.Claim(ctx, event.ID)
		switch {
		case err != nil:
			log.Printf("Webhook %s: dedupe guard unavailable, continuing: %v", event.ID, err)
		case !ok:
			log.Printf("Webhook %s (%s): duplicate delivery ignored", event.ID, event.Type)
			return nil
		default:
			claimed = true
		}
	}

	err := s.dispatch(ctx, event)

	if claimed {
		if err != nil {
			if relErr := s.guard.Release(ctx, event.ID); relErr != nil {
				log.Printf("Webhook %s: failed to release guard: %v", event.ID, relErr)
			}
		} else if doneErr := s.guard.Complete(ctx, event.ID); doneErr != nil {
			log.Printf("Webhook %s: failed to mark guard done: %v", event.ID, doneErr)
		}
	}
	return err
}

func (s *ReconcilerService) dispatch(ctx context.Context, event *payment.Event) error {
	switch event.Type {
	case payment.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case payment.EventCheckoutExpired:
		return s.handleCheckoutExpired(ctx, event)
	case payment.EventSubscriptionCreated:
		return s.handleSubscriptionCreated(ctx, event)
	case payment.EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		log.Printf("Webhook %s: unhandled event type %s", event.ID, event.Type)
		return nil
	}
}

// handleCheckoutCompleted pending/failed → completed，状态迁移与充值在同一事务内提交
// 超时清理后迟到的支付确认仍然入账
func (s *ReconcilerService) handleCheckoutCompleted(ctx context.Context, event *payment.Event) error {
	sessionID := event.Str("id")
	if sessionID == "" {
		log.Printf("Webhook %s: checkout session without id, dropped", event.ID)
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchases := s.purchaseRepo.WithTx(tx)

		purchase, err := purchases.GetBySessionID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Webhook %s: no purchase for session %s, dropped", event.ID, sessionID)
				return nil
			}
			return err
		}

		ok, err := purchases.Complete(ctx, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			log.Printf("Webhook %s: purchase %s already %s, skipped", event.ID, purchase.ID, purchase.Status)
			return nil
		}

		pkg, err := s.packageRepo.WithTx(tx).GetByID(ctx, purchase.PackageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Webhook %s: package %s for purchase %s not found, no grant", event.ID, purchase.PackageID, purchase.ID)
				return nil
			}
			return err
		}

		account, err := s.accountRepo.WithTx(tx).GetByID(ctx, purchase.AccountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Webhook %s: account %s for purchase %s not found, no grant", event.ID, purchase.AccountID, purchase.ID)
				return nil
			}
			return err
		}

		switch pkg.PackageType {
		case model.PackageTypeOneTime:
			credits := purchase.CreditsGranted
			if credits == nil {
				credits = pkg.Credits
			}
			if credits == nil || *credits <= 0 {
				log.Printf("Webhook %s: one-time package %s has no credits, nothing granted", event.ID, pkg.ID)
				return nil
			}
			if err := s.ledger.WithTx(tx).Credit(ctx, account.Email, *credits); err != nil {
				return err
			}
			log.Printf("Webhook %s: granted %d credits to %s (purchase %s)", event.ID, *credits, account.Email, purchase.ID)

		case model.PackageTypeSubscription:
			// 订阅在 customer.subscription.created 事件中开通
			if subID := event.Str("subscription"); subID != "" {
				if err := purchases.SetSubscriptionID(ctx, sessionID, subID); err != nil {
					return err
				}
			}
			log.Printf("Webhook %s: subscription purchase %s completed for %s", event.ID, purchase.ID, account.Email)
		}
		return nil
	})
}

func (s *ReconcilerService) handleCheckoutExpired(ctx context.Context, event *payment.Event) error {
	sessionID := event.Str("id")
	ok, err := s.purchaseRepo.TransitionStatus(ctx, sessionID, model.PurchaseStatusPending, model.PurchaseStatusFailed)
	if err != nil {
		return err
	}
	if ok {
		log.Printf("Webhook %s: session %s expired, purchase marked failed", event.ID, sessionID)
	} else {
		log.Printf("Webhook %s: session %s expired, no pending purchase", event.ID, sessionID)
	}
	return nil
}

func (s *ReconcilerService) handleSubscriptionCreated(ctx context.Context, event *payment.Event) error {
	email, err := s.resolveSubscriptionEmail(ctx, event)
	if err != nil {
		return err
	}
	if email == "" {
		log.Printf("Webhook %s: cannot resolve email for subscription %s, dropped", event.ID, event.Str("id"))
		return nil
	}

	if err := s.ledger.ActivateSubscription(ctx, email, nil); err != nil {
		return err
	}
	log.Printf("Webhook %s: unlimited subscription activated for %s", event.ID, email)
	return nil
}

func (s *ReconcilerService) handleSubscriptionDeleted(ctx context.Context, event *payment.Event) error {
	email, err := s.resolveSubscriptionEmail(ctx, event)
	if err != nil {
		return err
	}
	if email == "" {
		log.Printf("Webhook %s: cannot resolve email for subscription %s, dropped", event.ID, event.Str("id"))
		return nil
	}

	if err := s.ledger.DeactivateSubscription(ctx, email); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			log.Printf("Webhook %s: no account for %s, dropped", event.ID, email)
			return nil
		}
		return err
	}
	log.Printf("Webhook %s: unlimited subscription deactivated for %s", event.ID, email)
	return nil
}

// resolveSubscriptionEmail 依次尝试事件上的邮箱、metadata，最后通过订阅 ID 反查购买记录
func (s *ReconcilerService) resolveSubscriptionEmail(ctx context.Context, event *payment.Event) (string, error) {
	if email := event.CustomerEmail(); email != "" {
		return email, nil
	}

	subID := event.Str("id")
	if subID == "" {
		return "", nil
	}

	purchase, err := s.purchaseRepo.GetBySubscriptionID(ctx, subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}

	account, err := s.accountRepo.GetByID(ctx, purchase.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return account.Email, nil
}
