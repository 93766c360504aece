package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/jwt"
	"github.com/applysmartuk/statement_server/internal/repository"
	"github.com/applysmartuk/statement_server/internal/testutil"
)

const testJWTSecret = "test-secret"

func setupAdminService(t *testing.T) (*AdminService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: testJWTSecret, ExpireHours: 1},
	}

	accountRepo := repository.NewAccountRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	service := NewAdminService(
		repository.NewAdminRepository(db),
		accountRepo,
		repository.NewPurchaseRepository(db),
		repository.NewPackageRepository(db),
		usageRepo,
		NewEntitlementService(accountRepo),
		NewLedgerService(accountRepo),
		NewUsageService(usageRepo),
		cfg,
	)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return service, db, cleanup
}

func TestAdminService_CreateAndLogin(t *testing.T) {
	service, _, cleanup := setupAdminService(t)
	defer cleanup()
	ctx := context.Background()

	admin, err := service.CreateAdmin(ctx, " Admin@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", admin.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cret-pass")))

	_, err = service.CreateAdmin(ctx, "admin@example.com", "other")
	assert.ErrorIs(t, err, ErrAdminExists)

	resp, err := service.Login(ctx, &dto.AdminLoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)

	claims, err := jwt.ParseToken(resp.AccessToken, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.AdminID)
}

func TestAdminService_Login_InvalidCredentials(t *testing.T) {
	service, _, cleanup := setupAdminService(t)
	defer cleanup()
	ctx := context.Background()

	_, err := service.CreateAdmin(ctx, "admin@example.com", "right")
	require.NoError(t, err)

	_, err = service.Login(ctx, &dto.AdminLoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login(ctx, &dto.AdminLoginRequest{Email: "nobody@example.com", Password: "right"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminService_ListAccounts(t *testing.T) {
	service, db, cleanup := setupAdminService(t)
	defer cleanup()

	testutil.TestAccount(t, db, testutil.WithCredits(3))
	testutil.TestAccount(t, db, testutil.WithUnlimited(nil))

	items, total, err := service.ListAccounts(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	for _, item := range items {
		require.NotNil(t, item.Capacity)
		assert.True(t, item.Capacity.HasCapacity)
	}
}

func TestAdminService_GetAccount(t *testing.T) {
	service, db, cleanup := setupAdminService(t)
	defer cleanup()
	ctx := context.Background()

	account := testutil.TestAccount(t, db, testutil.WithCredits(4))
	_, err := service.usage.Record(ctx, account.ID, 1, dto.UsageContext{Role: "Consultant", Trust: "Leeds"})
	require.NoError(t, err)
	_, err = service.usage.Record(ctx, account.ID, 1, dto.UsageContext{Role: "Consultant", Trust: "Leeds"})
	require.NoError(t, err)

	info, err := service.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Credits)
	assert.Equal(t, int64(2), info.TotalCreditsUsed)
	assert.Equal(t, 4, info.Capacity.Remaining)

	_, err = service.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAdminService_AddCredits(t *testing.T) {
	service, db, cleanup := setupAdminService(t)
	defer cleanup()
	ctx := context.Background()

	account := testutil.TestAccount(t, db, testutil.WithCredits(1))

	info, err := service.AddCredits(ctx, account.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, info.Credits)

	_, err = service.AddCredits(ctx, account.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.AddCredits(ctx, "missing", 5)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAdminService_Subscription(t *testing.T) {
	service, db, cleanup := setupAdminService(t)
	defer cleanup()
	ctx := context.Background()

	account := testutil.TestAccount(t, db, testutil.WithCredits(2))
	expires := time.Now().Add(30 * 24 * time.Hour)

	info, err := service.ActivateSubscription(ctx, account.ID, &expires)
	require.NoError(t, err)
	assert.True(t, info.IsUnlimited)
	assert.True(t, info.Capacity.Unlimited)
	assert.Equal(t, 2, info.Credits, "balance is kept underneath the subscription")

	info, err = service.DeactivateSubscription(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, info.IsUnlimited)
	assert.Nil(t, info.UnlimitedExpiresAt)
	assert.Equal(t, 2, info.Capacity.Remaining)
}

func TestAdminService_ListPurchases(t *testing.T) {
	service, db, cleanup := setupAdminService(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	pkg := testutil.TestPackage(t, db, testutil.WithPackageName("Bundle"))
	testutil.TestPurchase(t, db, account, pkg, testutil.WithPurchaseStatus(model.PurchaseStatusCompleted))

	orphan := &model.Package{ID: "gone"}
	testutil.TestPurchase(t, db, account, orphan)

	items, err := service.ListPurchases(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	names := map[string]bool{}
	for _, item := range items {
		names[item.PackageName] = true
	}
	assert.True(t, names["Bundle"])
	assert.True(t, names["Unknown"])
}

func TestAdminService_ListUsage(t *testing.T) {
	service, db, cleanup := setupAdminService(t)
	defer cleanup()
	ctx := context.Background()

	account := testutil.TestAccount(t, db)
	for i := 0; i < 3; i++ {
		_, err := service.usage.Record(ctx, account.ID, 1, dto.UsageContext{Role: "GP", Trust: "Bristol"})
		require.NoError(t, err)
	}

	items, total, err := service.ListUsage(ctx, account.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)
	assert.Equal(t, "GP", items[0].Role)

	_, _, err = service.ListUsage(ctx, "missing", 1, 20)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
