package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/api/handler"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/pkg/response"
	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
	"github.com/applysmartuk/statement_server/internal/repository"
	"github.com/applysmartuk/statement_server/internal/service"
	"github.com/applysmartuk/statement_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		JWT:  config.JWTConfig{Secret: "router-secret", ExpireHours: 1},
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
	}

	accountRepo := repository.NewAccountRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	entitlement := service.NewEntitlementService(accountRepo)
	ledger := service.NewLedgerService(accountRepo)
	usage := service.NewUsageService(usageRepo)
	stripeClient := payment.NewClient(&config.StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"}, nil)
	runner := tasks.NewRunner(0, 1)

	router := NewRouter(
		handler.NewHealthHandler(db, nil),
		handler.NewSubmissionHandler(service.NewSubmissionService(entitlement, ledger, usage, accountRepo, nil, nil, nil, runner, cfg)),
		handler.NewStripeWebhookHandler(stripeClient, service.NewReconcilerService(db, purchaseRepo, packageRepo, accountRepo, ledger, nil)),
		handler.NewBillingHandler(service.NewCheckoutService(packageRepo, purchaseRepo, accountRepo, stripeClient, cfg)),
		handler.NewAdminHandler(
			service.NewAdminService(repository.NewAdminRepository(db), accountRepo, purchaseRepo, packageRepo, usageRepo, entitlement, ledger, usage, cfg),
			service.NewPackageService(packageRepo, purchaseRepo, stripeClient),
		),
		cfg,
	)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return router.Setup(), cleanup
}

func TestRouter_PublicRoutes(t *testing.T) {
	engine, cleanup := setupRouter(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/packages", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	engine, cleanup := setupRouter(t)
	defer cleanup()

	for _, path := range []string{"/admin/accounts", "/admin/packages"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		var resp response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, response.CodeAuthFailed, resp.Code, path)
	}
}

func TestRouter_Preflight(t *testing.T) {
	engine, cleanup := setupRouter(t)
	defer cleanup()

	req := httptest.NewRequest("OPTIONS", "/api/v1/checkout", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
