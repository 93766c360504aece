package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/jwt"
	"github.com/applysmartuk/statement_server/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrAdminExists        = errors.New("admin already exists")
)

// AdminService 后台账户管理，余额变更一律走 LedgerService
type AdminService struct {
	adminRepo    *repository.AdminRepository
	accountRepo  *repository.AccountRepository
	purchaseRepo *repository.PurchaseRepository
	packageRepo  *repository.PackageRepository
	usageRepo    *repository.UsageRepository
	entitlement  *EntitlementService
	ledger       *LedgerService
	usage        *UsageService
	cfg          *config.Config
	now          func() time.Time
}

func NewAdminService(
	adminRepo *repository.AdminRepository,
	accountRepo *repository.AccountRepository,
	purchaseRepo *repository.PurchaseRepository,
	packageRepo *repository.PackageRepository,
	usageRepo *repository.UsageRepository,
	entitlement *EntitlementService,
	ledger *LedgerService,
	usage *UsageService,
	cfg *config.Config,
) *AdminService {
	return &AdminService{
		adminRepo:    adminRepo,
		accountRepo:  accountRepo,
		purchaseRepo: purchaseRepo,
		packageRepo:  packageRepo,
		usageRepo:    usageRepo,
		entitlement:  entitlement,
		ledger:       ledger,
		usage:        usage,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Login 管理员登录
func (s *AdminService) Login(ctx context.Context, req *dto.AdminLoginRequest) (*dto.AdminLoginResponse, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(admin.ID, admin.Email, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.AdminLoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
	}, nil
}

// CreateAdmin 创建管理员
func (s *AdminService) CreateAdmin(ctx context.Context, email, password string) (*model.AdminUser, error) {
	email = normalizeEmail(email)

	if _, err := s.adminRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrAdminExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	admin := &model.AdminUser{
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ListAccounts 分页查询账户
func (s *AdminService) ListAccounts(ctx context.Context, page, pageSize int) ([]dto.AccountInfo, int64, error) {
	accounts, total, err := s.accountRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	items := make([]dto.AccountInfo, 0, len(accounts))
	for i := range accounts {
		info := toAccountInfo(&accounts[i])
		info.Capacity = capacityInfoOf(&accounts[i], now)
		items = append(items, info)
	}
	return items, total, nil
}

// GetAccount 账户详情
func (s *AdminService) GetAccount(ctx context.Context, accountID string) (*dto.AccountInfo, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	capacity, err := s.entitlement.GetCapacityInfo(ctx, account.Email)
	if err != nil {
		return nil, err
	}

	used, err := s.usageRepo.SumByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	info := toAccountInfo(account)
	info.Capacity = capacity
	info.TotalCreditsUsed = used
	return &info, nil
}

// ListPurchases 账户购买记录
func (s *AdminService) ListPurchases(ctx context.Context, accountID string) ([]dto.PurchaseInfo, error) {
	if _, err := s.getAccount(ctx, accountID); err != nil {
		return nil, err
	}

	purchases, err := s.purchaseRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	packages, err := s.packageRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(packages))
	for _, p := range packages {
		names[p.ID] = p.Name
	}

	items := make([]dto.PurchaseInfo, 0, len(purchases))
	for _, p := range purchases {
		name, ok := names[p.PackageID]
		if !ok {
			name = "Unknown"
		}
		items = append(items, dto.PurchaseInfo{
			ID:             p.ID,
			PackageName:    name,
			CreditsGranted: p.CreditsGranted,
			AmountGBP:      p.AmountGBP,
			Status:         p.Status,
			PurchasedAt:    p.PurchasedAt,
			CompletedAt:    p.CompletedAt,
		})
	}
	return items, nil
}

// ListUsage 账户消耗记录
func (s *AdminService) ListUsage(ctx context.Context, accountID string, page, pageSize int) ([]dto.UsageInfo, int64, error) {
	if _, err := s.getAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}
	return s.usage.List(ctx, accountID, page, pageSize)
}

// AddCredits 手动充值
func (s *AdminService) AddCredits(ctx context.Context, accountID string, credits int) (*dto.AccountInfo, error) {
	if credits <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Credit(ctx, account.Email, credits); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, accountID)
}

// ActivateSubscription 手动开通无限订阅
func (s *AdminService) ActivateSubscription(ctx context.Context, accountID string, expiresAt *time.Time) (*dto.AccountInfo, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.ActivateSubscription(ctx, account.Email, expiresAt); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, accountID)
}

// DeactivateSubscription 手动取消无限订阅
func (s *AdminService) DeactivateSubscription(ctx context.Context, accountID string) (*dto.AccountInfo, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.DeactivateSubscription(ctx, account.Email); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, accountID)
}

func (s *AdminService) getAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func toAccountInfo(a *model.Account) dto.AccountInfo {
	return dto.AccountInfo{
		ID:                 a.ID,
		Email:              a.Email,
		Credits:            a.Credits,
		IsUnlimited:        a.IsUnlimited,
		UnlimitedExpiresAt: a.UnlimitedExpiresAt,
		CreatedAt:          a.CreatedAt,
	}
}
