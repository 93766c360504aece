package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/repository"
)

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrPackageInactive = errors.New("package is no longer available")
)

// CheckoutService 套餐展示与下单
type CheckoutService struct {
	packageRepo  *repository.PackageRepository
	purchaseRepo *repository.PurchaseRepository
	accountRepo  *repository.AccountRepository
	provider     CheckoutProvider
	cfg          *config.Config
}

func NewCheckoutService(
	packageRepo *repository.PackageRepository,
	purchaseRepo *repository.PurchaseRepository,
	accountRepo *repository.AccountRepository,
	provider CheckoutProvider,
	cfg *config.Config,
) *CheckoutService {
	return &CheckoutService{
		packageRepo:  packageRepo,
		purchaseRepo: purchaseRepo,
		accountRepo:  accountRepo,
		provider:     provider,
		cfg:          cfg,
	}
}

// ListPackages 在售套餐，按 display_order 排序
func (s *CheckoutService) ListPackages(ctx context.Context) ([]dto.PackageInfo, error) {
	packages, err := s.packageRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]dto.PackageInfo, 0, len(packages))
	for i := range packages {
		items = append(items, toPackageInfo(&packages[i]))
	}
	return items, nil
}

// CreateCheckout 创建支付会话并记录 pending 订单
func (s *CheckoutService) CreateCheckout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	pkg, err := s.packageRepo.GetByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	if !pkg.IsActive {
		return nil, ErrPackageInactive
	}

	email := normalizeEmail(req.Email)
	account, err := s.accountRepo.Ensure(ctx, email)
	if err != nil {
		return nil, err
	}

	mode := payment.ModePayment
	if pkg.PackageType == model.PackageTypeSubscription {
		mode = payment.ModeSubscription
	}

	frontend := strings.TrimRight(s.cfg.Server.FrontendURL, "/")
	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutParams{
		Email:      email,
		PriceID:    pkg.StripePriceID,
		Mode:       mode,
		SuccessURL: frontend + s.cfg.Billing.SuccessPath + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  frontend + s.cfg.Billing.CancelPath,
		Metadata: map[string]string{
			"email":      email,
			"account_id": account.ID,
			"package_id": pkg.ID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	purchase := &model.Purchase{
		AccountID:       account.ID,
		PackageID:       pkg.ID,
		StripeSessionID: session.ID,
		CreditsGranted:  pkg.Credits,
		AmountGBP:       pkg.PriceGBP,
		Status:          model.PurchaseStatusPending,
	}
	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		return nil, err
	}

	log.Printf("Checkout session %s created for %s (package %s)", session.ID, email, pkg.Name)

	return &dto.CheckoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
	}, nil
}

// GetPurchaseStatus 支付回跳页查询订单状态
func (s *CheckoutService) GetPurchaseStatus(ctx context.Context, sessionID string) (*dto.PurchaseStatus, error) {
	purchase, err := s.purchaseRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	return &dto.PurchaseStatus{
		SessionID:      purchase.StripeSessionID,
		Status:         purchase.Status,
		CreditsGranted: purchase.CreditsGranted,
		CompletedAt:    purchase.CompletedAt,
	}, nil
}

func toPackageInfo(pkg *model.Package) dto.PackageInfo {
	return dto.PackageInfo{
		ID:           pkg.ID,
		Name:         pkg.Name,
		Description:  pkg.Description,
		PackageType:  pkg.PackageType,
		Credits:      pkg.Credits,
		PriceGBP:     pkg.PriceGBP,
		DisplayOrder: pkg.DisplayOrder,
	}
}
