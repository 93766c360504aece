package main

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/database"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/repository"
	"github.com/applysmartuk/statement_server/internal/service"
)

// app 命令行共享的依赖
type app struct {
	db       *gorm.DB
	rdb      *redis.Client
	admin    *service.AdminService
	packages *service.PackageService
	ledger   *service.LedgerService
	cleanup  func()
}

type appFactory func(configPath string) (*app, error)

func wireApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.NewDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// watch 命令才需要 redis，连接失败时延后到执行时报错
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, _ = database.NewRedis(&cfg.Redis)
	}

	a := newApp(db, rdb, payment.NewClient(&cfg.Stripe, nil), cfg)
	a.cleanup = func() {
		if rdb != nil {
			rdb.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return a, nil
}

func newApp(db *gorm.DB, rdb *redis.Client, provider service.CheckoutProvider, cfg *config.Config) *app {
	accountRepo := repository.NewAccountRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	ledger := service.NewLedgerService(accountRepo)
	return &app{
		db:  db,
		rdb: rdb,
		admin: service.NewAdminService(
			repository.NewAdminRepository(db),
			accountRepo,
			purchaseRepo,
			packageRepo,
			usageRepo,
			service.NewEntitlementService(accountRepo),
			ledger,
			service.NewUsageService(usageRepo),
			cfg,
		),
		packages: service.NewPackageService(packageRepo, purchaseRepo, provider),
		ledger:   ledger,
	}
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
