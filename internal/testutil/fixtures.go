package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
)

// TestAccount 创建测试账户
func TestAccount(t *testing.T, db *gorm.DB, opts ...func(*model.Account)) *model.Account {
	t.Helper()

	account := &model.Account{
		Email:   fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		Credits: 0,
	}

	for _, opt := range opts {
		opt(account)
	}

	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}

	return account
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.Account) {
	return func(a *model.Account) {
		a.Email = email
	}
}

// WithCredits 设置余额
func WithCredits(credits int) func(*model.Account) {
	return func(a *model.Account) {
		a.Credits = credits
	}
}

// WithUnlimited 设置无限订阅，expiresAt 为 nil 表示永不过期
func WithUnlimited(expiresAt *time.Time) func(*model.Account) {
	return func(a *model.Account) {
		a.IsUnlimited = true
		a.UnlimitedExpiresAt = expiresAt
	}
}

// TestPackage 创建测试套餐，默认为 5 次的单次购买套餐
func TestPackage(t *testing.T, db *gorm.DB, opts ...func(*model.Package)) *model.Package {
	t.Helper()

	credits := 5
	pkg := &model.Package{
		Name:          "Starter",
		Description:   "Five statements",
		PackageType:   model.PackageTypeOneTime,
		Credits:       &credits,
		PriceGBP:      19.99,
		StripePriceID: "price_" + uuid.NewString()[:8],
		IsActive:      true,
	}

	for _, opt := range opts {
		opt(pkg)
	}

	if err := db.Create(pkg).Error; err != nil {
		t.Fatalf("Failed to create test package: %v", err)
	}

	// gorm 会忽略 bool 零值，需要单独更新
	if !pkg.IsActive {
		db.Model(pkg).Update("is_active", false)
	}

	return pkg
}

// WithPackageName 设置套餐名
func WithPackageName(name string) func(*model.Package) {
	return func(p *model.Package) {
		p.Name = name
	}
}

// AsSubscription 设置为无限次订阅套餐
func AsSubscription() func(*model.Package) {
	return func(p *model.Package) {
		p.PackageType = model.PackageTypeSubscription
		p.Credits = nil
	}
}

// WithPackageCredits 设置套餐次数
func WithPackageCredits(credits int) func(*model.Package) {
	return func(p *model.Package) {
		p.Credits = &credits
	}
}

// Inactive 设置为已下架
func Inactive() func(*model.Package) {
	return func(p *model.Package) {
		p.IsActive = false
	}
}

// TestPurchase 创建测试订单，默认状态 pending，积分快照取自套餐
func TestPurchase(t *testing.T, db *gorm.DB, account *model.Account, pkg *model.Package, opts ...func(*model.Purchase)) *model.Purchase {
	t.Helper()

	purchase := &model.Purchase{
		AccountID:       account.ID,
		PackageID:       pkg.ID,
		StripeSessionID: "cs_test_" + uuid.NewString(),
		CreditsGranted:  pkg.Credits,
		AmountGBP:       pkg.PriceGBP,
		Status:          model.PurchaseStatusPending,
	}

	for _, opt := range opts {
		opt(purchase)
	}

	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("Failed to create test purchase: %v", err)
	}

	return purchase
}

// WithSessionID 设置支付会话 ID
func WithSessionID(sessionID string) func(*model.Purchase) {
	return func(p *model.Purchase) {
		p.StripeSessionID = sessionID
	}
}

// WithPurchaseStatus 设置订单状态
func WithPurchaseStatus(status string) func(*model.Purchase) {
	return func(p *model.Purchase) {
		p.Status = status
	}
}

// WithSubscriptionID 设置订阅 ID
func WithSubscriptionID(subscriptionID string) func(*model.Purchase) {
	return func(p *model.Purchase) {
		p.StripeSubscriptionID = &subscriptionID
	}
}

// WithPurchasedAt 设置下单时间
func WithPurchasedAt(at time.Time) func(*model.Purchase) {
	return func(p *model.Purchase) {
		p.PurchasedAt = at
	}
}

// TestAdmin 创建测试管理员
func TestAdmin(t *testing.T, db *gorm.DB, email, passwordHash string) *model.AdminUser {
	t.Helper()

	admin := &model.AdminUser{
		Email:        email,
		PasswordHash: passwordHash,
	}

	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("Failed to create test admin: %v", err)
	}

	return admin
}

// CountUsageRecords 统计审计记录数
func CountUsageRecords(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&model.UsageRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count usage records: %v", err)
	}
	return count
}
