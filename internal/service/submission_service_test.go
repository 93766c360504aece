package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
	"github.com/applysmartuk/statement_server/internal/repository"
	"github.com/applysmartuk/statement_server/internal/testutil"
)

type submissionFixture struct {
	db        *gorm.DB
	service   *SubmissionService
	generator *fakeGenerator
	notifier  *fakeNotifier
	store     *fakeStore
	runner    *syncRunner
}

func setupSubmissionService(t *testing.T) (*submissionFixture, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	accountRepo := repository.NewAccountRepository(db)

	f := &submissionFixture{
		db:        db,
		generator: &fakeGenerator{text: "## Introduction\nI am applying..."},
		notifier:  &fakeNotifier{},
		store:     &fakeStore{},
		runner:    &syncRunner{},
	}

	cfg := &config.Config{
		Server:  config.ServerConfig{FrontendURL: "https://app.example.com/"},
		Billing: config.BillingConfig{PurchasePath: "/packages"},
	}

	f.service = NewSubmissionService(
		NewEntitlementService(accountRepo),
		NewLedgerService(accountRepo),
		NewUsageService(repository.NewUsageRepository(db)),
		accountRepo,
		f.generator,
		f.notifier,
		f.store,
		f.runner,
		cfg,
	)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return f, cleanup
}

func testSubmission(email string) *dto.ParsedSubmission {
	return &dto.ParsedSubmission{
		Name:          "Jane Doe",
		Role:          "Staff Nurse",
		Trust:         "Barts Health",
		Email:         email,
		Consent:       true,
		CVURL:         "https://files.example.com/cv.pdf",
		PersonSpecURL: "https://files.example.com/spec.pdf",
	}
}

func TestSubmissionService_ConsentDenied(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	account := testutil.TestAccount(t, f.db, testutil.WithCredits(3))
	sub := testSubmission(account.Email)
	sub.Consent = false

	result, err := f.service.Admit(context.Background(), sub)
	assert.ErrorIs(t, err, ErrConsentDenied)
	assert.Nil(t, result)
	assert.Empty(t, f.runner.names)
	assert.Equal(t, 3, reloadAccount(t, f.db, account.Email).Credits)
}

func TestSubmissionService_InsufficientCredits(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	account := testutil.TestAccount(t, f.db, testutil.WithCredits(0))

	result, err := f.service.Admit(context.Background(), testSubmission(account.Email))
	require.NoError(t, err)
	assert.Equal(t, dto.SubmissionInsufficientCredits, result.Status)
	assert.NotEmpty(t, result.TaskID)

	assert.Equal(t, 0, f.generator.calls, "no generation queued")
	assert.Equal(t, int64(0), testutil.CountUsageRecords(t, f.db))
	assert.Equal(t, 0, reloadAccount(t, f.db, account.Email).Credits)

	require.Len(t, f.notifier.noCreditMails, 1)
	assert.Equal(t, "https://app.example.com/packages", f.notifier.noCreditMails[0].link)
	assert.Equal(t, []string{taskNotifyNoCredit}, f.runner.names)
	assert.Equal(t, tasks.StatusNotified, f.runner.outcomes[0].Status)
}

func TestSubmissionService_UnknownAccountGetsNotice(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	result, err := f.service.Admit(context.Background(), testSubmission("stranger@example.com"))
	require.NoError(t, err)
	assert.Equal(t, dto.SubmissionInsufficientCredits, result.Status)
	assert.Len(t, f.notifier.noCreditMails, 1)
}

func TestSubmissionService_AcceptedDebitsAndRecords(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	account := testutil.TestAccount(t, f.db, testutil.WithCredits(1))

	result, err := f.service.Admit(context.Background(), testSubmission(account.Email))
	require.NoError(t, err)
	assert.Equal(t, dto.SubmissionAccepted, result.Status)

	require.Len(t, f.runner.outcomes, 1)
	assert.Equal(t, tasks.StatusCompleted, f.runner.outcomes[0].Status)
	assert.Empty(t, f.runner.outcomes[0].Detail)

	assert.Equal(t, 0, reloadAccount(t, f.db, account.Email).Credits)
	assert.Equal(t, int64(1), testutil.CountUsageRecords(t, f.db))

	require.Len(t, f.notifier.statements, 1)
	assert.Equal(t, f.generator.text, f.notifier.statements[0].statement)
	require.Len(t, f.store.keys, 1)
	assert.Contains(t, f.store.keys[0], "statements/"+account.ID+"/")
}

func TestSubmissionService_UnlimitedNotCharged(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	account := testutil.TestAccount(t, f.db, testutil.WithUnlimited(nil))

	result, err := f.service.Admit(context.Background(), testSubmission(account.Email))
	require.NoError(t, err)
	assert.Equal(t, dto.SubmissionAccepted, result.Status)

	assert.Equal(t, 0, reloadAccount(t, f.db, account.Email).Credits)
	assert.Equal(t, int64(1), testutil.CountUsageRecords(t, f.db))
}

func TestSubmissionService_GenerationFailureNotCharged(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	f.generator.err = errors.New("model overloaded")
	account := testutil.TestAccount(t, f.db, testutil.WithCredits(2))

	result, err := f.service.Admit(context.Background(), testSubmission(account.Email))
	require.NoError(t, err)
	assert.Equal(t, dto.SubmissionAccepted, result.Status)

	assert.Equal(t, tasks.StatusFailed, f.runner.outcomes[0].Status)
	assert.Contains(t, f.runner.outcomes[0].Err, "model overloaded")
	assert.Equal(t, 2, reloadAccount(t, f.db, account.Email).Credits)
	assert.Equal(t, int64(0), testutil.CountUsageRecords(t, f.db))
	assert.Empty(t, f.notifier.statements)
	assert.Empty(t, f.store.keys)
}

func TestSubmissionService_LedgerInconsistencyStillDelivers(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	account := testutil.TestAccount(t, f.db, testutil.WithCredits(0))

	// 额度检查之后余额被并发消耗
	outcome := f.service.Process(context.Background(), testSubmission(account.Email))

	assert.Equal(t, tasks.StatusCompleted, outcome.Status)
	assert.Equal(t, detailLedgerInconsistency, outcome.Detail)
	assert.Equal(t, 0, reloadAccount(t, f.db, account.Email).Credits)
	assert.Equal(t, int64(0), testutil.CountUsageRecords(t, f.db))
	assert.Len(t, f.notifier.statements, 1)
}

func TestSubmissionService_DeliveryFailure(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	f.notifier.err = errors.New("smtp unavailable")
	account := testutil.TestAccount(t, f.db, testutil.WithCredits(1))

	outcome := f.service.Process(context.Background(), testSubmission(account.Email))

	assert.Equal(t, tasks.StatusDeliveryFailed, outcome.Status)
	assert.Equal(t, 0, reloadAccount(t, f.db, account.Email).Credits, "charged once generation succeeded")
	assert.Equal(t, int64(1), testutil.CountUsageRecords(t, f.db))
}

func TestSubmissionService_ArchiveFailureIgnored(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	f.store.err = errors.New("bucket missing")
	account := testutil.TestAccount(t, f.db, testutil.WithCredits(1))

	outcome := f.service.Process(context.Background(), testSubmission(account.Email))
	assert.Equal(t, tasks.StatusCompleted, outcome.Status)
	assert.Len(t, f.notifier.statements, 1)
}

func TestSubmissionService_NoStore(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	f.service.store = nil
	account := testutil.TestAccount(t, f.db, testutil.WithCredits(1))

	outcome := f.service.Process(context.Background(), testSubmission(account.Email))
	assert.Equal(t, tasks.StatusCompleted, outcome.Status)
}

func TestSubmissionService_ProcessMissingAccount(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	outcome := f.service.Process(context.Background(), testSubmission("gone@example.com"))
	assert.Equal(t, tasks.StatusFailed, outcome.Status)
	assert.Equal(t, 0, f.generator.calls)
}

func TestSubmissionService_SettlesAfterSlowGeneration(t *testing.T) {
	f, cleanup := setupSubmissionService(t)
	defer cleanup()

	// 生成在任务截止时间之后才返回
	runner := tasks.NewRunner(100*time.Millisecond, 4)
	f.service.runner = runner
	f.generator.delay = 150 * time.Millisecond
	account := testutil.TestAccount(t, f.db, testutil.WithCredits(1))

	result, err := f.service.Admit(context.Background(), testSubmission(account.Email))
	require.NoError(t, err)
	assert.Equal(t, dto.SubmissionAccepted, result.Status)

	runner.Wait()
	outcome := <-runner.Outcomes()

	assert.Equal(t, tasks.StatusCompleted, outcome.Status)
	assert.Empty(t, outcome.Detail)
	assert.Equal(t, 0, reloadAccount(t, f.db, account.Email).Credits)
	assert.Equal(t, int64(1), testutil.CountUsageRecords(t, f.db))
	assert.Len(t, f.notifier.statements, 1)
	assert.Len(t, f.store.keys, 1)
}
