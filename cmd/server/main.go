package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/api"
	"github.com/applysmartuk/statement_server/internal/api/handler"
	"github.com/applysmartuk/statement_server/internal/database"
	"github.com/applysmartuk/statement_server/internal/pkg/cron"
	"github.com/applysmartuk/statement_server/internal/pkg/dedupe"
	"github.com/applysmartuk/statement_server/internal/pkg/email"
	"github.com/applysmartuk/statement_server/internal/pkg/generator"
	"github.com/applysmartuk/statement_server/internal/pkg/oss"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/pkg/pubsub"
	"github.com/applysmartuk/statement_server/internal/pkg/s3"
	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
	"github.com/applysmartuk/statement_server/internal/repository"
	"github.com/applysmartuk/statement_server/internal/service"
)

const (
	// 已处理 webhook 事件的保留时间，覆盖 Stripe 的重试窗口
	eventDedupeTTL = 72 * time.Hour
	outcomeBuffer  = 256
)

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Printf("Database connected (%s)", cfg.Database.Driver)

	// 初始化 Redis（可选，只用于事件去重和结果通知）
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Printf("Warning: Redis unavailable, running without event dedupe: %v", err)
			rdb = nil
		} else {
			log.Println("Redis connected")
		}
	}

	// 外部服务
	stripeClient := payment.NewClient(&cfg.Stripe, nil)
	mailer := email.NewService(&cfg.Email)
	gen := generator.NewClient(&cfg.Generator)
	store := newArtifactStore(cfg)

	var guard service.EventGuard
	var publisher *pubsub.Publisher
	if rdb != nil {
		guard = dedupe.NewGuard(rdb, eventDedupeTTL)
		publisher = pubsub.NewPublisher(rdb)
	}

	runner := tasks.NewRunner(time.Duration(cfg.Generator.TimeoutSeconds)*time.Second, outcomeBuffer)

	// 初始化 Repository
	accountRepo := repository.NewAccountRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	// 初始化 Service
	entitlementService := service.NewEntitlementService(accountRepo)
	ledgerService := service.NewLedgerService(accountRepo)
	usageService := service.NewUsageService(usageRepo)
	reconcilerService := service.NewReconcilerService(db, purchaseRepo, packageRepo, accountRepo, ledgerService, guard)
	checkoutService := service.NewCheckoutService(packageRepo, purchaseRepo, accountRepo, stripeClient, cfg)
	packageService := service.NewPackageService(packageRepo, purchaseRepo, stripeClient)
	adminService := service.NewAdminService(adminRepo, accountRepo, purchaseRepo, packageRepo, usageRepo,
		entitlementService, ledgerService, usageService, cfg)
	submissionService := service.NewSubmissionService(entitlementService, ledgerService, usageService,
		accountRepo, gen, mailer, store, runner, cfg)

	// 初始化 Handler
	router := api.NewRouter(
		handler.NewHealthHandler(db, rdb),
		handler.NewSubmissionHandler(submissionService),
		handler.NewStripeWebhookHandler(stripeClient, reconcilerService),
		handler.NewBillingHandler(checkoutService),
		handler.NewAdminHandler(adminService, packageService),
		cfg,
	)
	engine := router.Setup()

	// 定时清理
	sweeper := cron.NewService(accountRepo, purchaseRepo,
		time.Duration(cfg.Billing.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.Billing.PendingExpireHours)*time.Hour)
	sweeper.Start()

	// 任务结果转发
	drainCtx, stopDrain := context.WithCancel(context.Background())
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		forwardOutcomes(drainCtx, runner.Outcomes(), publisher)
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	sweeper.Stop()

	log.Println("Waiting for background tasks to finish")
	runner.Wait()
	stopDrain()
	<-drained

	if rdb != nil {
		rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Server shutdown complete")
}

// newArtifactStore 按配置选择归档存储，未配置时返回 nil 接口
func newArtifactStore(cfg *config.Config) service.ArtifactStore {
	switch cfg.Storage.Provider {
	case "oss":
		client, err := oss.NewClient(&cfg.Storage.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client, archiving disabled: %v", err)
			return nil
		}
		log.Println("OSS archive enabled")
		return client
	case "s3":
		client, err := s3.NewClient(context.Background(), &cfg.Storage.S3)
		if err != nil {
			log.Printf("Warning: Failed to init S3 client, archiving disabled: %v", err)
			return nil
		}
		log.Println("S3 archive enabled")
		return client
	default:
		return nil
	}
}

// forwardOutcomes 记录任务结果并转发到 Redis，publisher 为 nil 时只记录
// ctx 取消后把通道中剩余的结果处理完再返回
func forwardOutcomes(ctx context.Context, outcomes <-chan tasks.Outcome, publisher *pubsub.Publisher) {
	handle := func(o tasks.Outcome) {
		log.Printf("Task %s (%s) finished: status=%s detail=%s err=%s", o.TaskID, o.Name, o.Status, o.Detail, o.Err)
		if publisher == nil {
			return
		}
		pubCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := publisher.PublishOutcome(pubCtx, pubsub.FromOutcome(o)); err != nil {
			log.Printf("Failed to publish outcome for task %s: %v", o.TaskID, err)
		}
	}

	for {
		select {
		case o := <-outcomes:
			handle(o)
		case <-ctx.Done():
			for {
				select {
				case o := <-outcomes:
					handle(o)
				default:
					return
				}
			}
		}
	}
}
