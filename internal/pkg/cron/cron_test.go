package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/repository"
	"github.com/applysmartuk/statement_server/internal/testutil"
)

func setupCronService(t *testing.T) (*Service, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	svc := NewService(
		repository.NewAccountRepository(db),
		repository.NewPurchaseRepository(db),
		time.Hour,
		24*time.Hour,
	)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return svc, db, cleanup
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(nil, nil, 0, -1)
	assert.Equal(t, time.Hour, svc.interval)
	assert.Equal(t, 24*time.Hour, svc.pendingTTL)
}

func TestRunNow_ClearsExpiredSubscriptions(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := testutil.TestAccount(t, db, testutil.WithUnlimited(&past), testutil.WithCredits(3))
	active := testutil.TestAccount(t, db, testutil.WithUnlimited(&future))
	forever := testutil.TestAccount(t, db, testutil.WithUnlimited(nil))

	res, err := svc.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ExpiredSubscriptions)

	var a model.Account
	require.NoError(t, db.First(&a, "id = ?", expired.ID).Error)
	assert.False(t, a.IsUnlimited)
	assert.Nil(t, a.UnlimitedExpiresAt)
	assert.Equal(t, 3, a.Credits, "metered balance survives")

	require.NoError(t, db.First(&a, "id = ?", active.ID).Error)
	assert.True(t, a.IsUnlimited)
	require.NoError(t, db.First(&a, "id = ?", forever.ID).Error)
	assert.True(t, a.IsUnlimited)
}

func TestRunNow_FailsStalePending(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	account := testutil.TestAccount(t, db)
	pkg := testutil.TestPackage(t, db)
	stale := testutil.TestPurchase(t, db, account, pkg, testutil.WithPurchasedAt(time.Now().Add(-48*time.Hour)))
	fresh := testutil.TestPurchase(t, db, account, pkg)
	done := testutil.TestPurchase(t, db, account, pkg,
		testutil.WithPurchasedAt(time.Now().Add(-48*time.Hour)),
		testutil.WithPurchaseStatus(model.PurchaseStatusCompleted))

	res, err := svc.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.StalePurchases)

	statusOf := func(id string) string {
		var p model.Purchase
		require.NoError(t, db.First(&p, "id = ?", id).Error)
		return p.Status
	}
	assert.Equal(t, model.PurchaseStatusFailed, statusOf(stale.ID))
	assert.Equal(t, model.PurchaseStatusPending, statusOf(fresh.ID))
	assert.Equal(t, model.PurchaseStatusCompleted, statusOf(done.ID))
}

func TestRunNow_UsesInjectedClock(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	expiresAt := time.Now().Add(2 * time.Hour)
	account := testutil.TestAccount(t, db, testutil.WithUnlimited(&expiresAt))

	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	res, err := svc.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ExpiredSubscriptions)

	var a model.Account
	require.NoError(t, db.First(&a, "id = ?", account.ID).Error)
	assert.False(t, a.IsUnlimited)
}

func TestStartStop(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	past := time.Now().Add(-time.Minute)
	account := testutil.TestAccount(t, db, testutil.WithUnlimited(&past))

	svc.Start()
	require.Eventually(t, func() bool {
		var a model.Account
		if err := db.First(&a, "id = ?", account.ID).Error; err != nil {
			return false
		}
		return !a.IsUnlimited
	}, 2*time.Second, 20*time.Millisecond)

	svc.Stop()
	svc.Stop()
}

func TestRunNow_DatabaseClosed(t *testing.T) {
	svc, db, cleanup := setupCronService(t)
	defer cleanup()

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.RunNow(context.Background())
	assert.Error(t, err)
}
