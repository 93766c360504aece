package api

import (
	"github.com/gin-gonic/gin"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/api/handler"
	"github.com/applysmartuk/statement_server/internal/api/middleware"
)

type Router struct {
	healthHandler     *handler.HealthHandler
	submissionHandler *handler.SubmissionHandler
	stripeHandler     *handler.StripeWebhookHandler
	billingHandler    *handler.BillingHandler
	adminHandler      *handler.AdminHandler
	cfg               *config.Config
}

func NewRouter(
	healthHandler *handler.HealthHandler,
	submissionHandler *handler.SubmissionHandler,
	stripeHandler *handler.StripeWebhookHandler,
	billingHandler *handler.BillingHandler,
	adminHandler *handler.AdminHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		healthHandler:     healthHandler,
		submissionHandler: submissionHandler,
		stripeHandler:     stripeHandler,
		billingHandler:    billingHandler,
		adminHandler:      adminHandler,
		cfg:               cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", r.healthHandler.Check)

	// 第三方回调
	engine.POST("/webhook", r.submissionHandler.Handle)
	engine.POST("/stripe-webhook", r.stripeHandler.Handle)

	api := engine.Group("/api/v1")
	{
		api.GET("/packages", r.billingHandler.ListPackages)
		api.POST("/checkout", r.billingHandler.CreateCheckout)
		api.GET("/checkout/:session_id", r.billingHandler.GetPurchaseStatus)
	}

	admin := engine.Group("/admin")
	admin.POST("/login", r.adminHandler.Login)

	authenticated := admin.Group("")
	authenticated.Use(middleware.AdminAuth(r.cfg.JWT.Secret))
	{
		accounts := authenticated.Group("/accounts")
		{
			accounts.GET("", r.adminHandler.ListAccounts)
			accounts.GET("/:id", r.adminHandler.GetAccount)
			accounts.GET("/:id/purchases", r.adminHandler.ListPurchases)
			accounts.GET("/:id/usage", r.adminHandler.ListUsage)
			accounts.POST("/:id/credits", r.adminHandler.AddCredits)
			accounts.POST("/:id/subscription", r.adminHandler.ActivateSubscription)
			accounts.DELETE("/:id/subscription", r.adminHandler.DeactivateSubscription)
		}

		packages := authenticated.Group("/packages")
		{
			packages.GET("", r.adminHandler.ListPackages)
			packages.POST("", r.adminHandler.CreatePackage)
			packages.PUT("/:id", r.adminHandler.UpdatePackage)
			packages.DELETE("/:id", r.adminHandler.DeletePackage)
		}
	}

	return engine
}
