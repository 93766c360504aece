package cron

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/applysmartuk/statement_server/internal/repository"
)

// Result 一次清理的统计
type Result struct {
	ExpiredSubscriptions int64
	StalePurchases       int64
}

// Service 账本定时清理：过期的无限订阅、超时未支付的订单
type Service struct {
	accountRepo  *repository.AccountRepository
	purchaseRepo *repository.PurchaseRepository
	interval     time.Duration
	pendingTTL   time.Duration
	now          func() time.Time
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewService(
	accountRepo *repository.AccountRepository,
	purchaseRepo *repository.PurchaseRepository,
	interval time.Duration,
	pendingTTL time.Duration,
) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	if pendingTTL <= 0 {
		pendingTTL = 24 * time.Hour
	}
	return &Service{
		accountRepo:  accountRepo,
		purchaseRepo: purchaseRepo,
		interval:     interval,
		pendingTTL:   pendingTTL,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Start 启动定时任务，启动时先执行一次
func (s *Service) Start() {
	s.wg.Add(1)
	go s.loop()
	log.Printf("Cron service started (every %s, pending ttl %s)", s.interval, s.pendingTTL)
}

// Stop 停止定时任务并等待当前一轮结束
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	log.Println("Cron service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := s.RunNow(ctx)
	if err != nil {
		log.Printf("Cron sweep failed: %v", err)
		return
	}
	if res.ExpiredSubscriptions > 0 || res.StalePurchases > 0 {
		log.Printf("Cron sweep: expired subscriptions=%d, stale purchases=%d", res.ExpiredSubscriptions, res.StalePurchases)
	}
}

// RunNow 立即执行一轮清理（用于测试或手动触发）
// 两项清理互不依赖，前一项失败时后一项仍会执行
func (s *Service) RunNow(ctx context.Context) (Result, error) {
	var res Result
	now := s.now()

	expired, err := s.accountRepo.ClearExpiredUnlimited(ctx, now)
	if err != nil {
		log.Printf("Cron: failed to clear expired subscriptions: %v", err)
	}
	res.ExpiredSubscriptions = expired

	stale, staleErr := s.purchaseRepo.FailStalePending(ctx, now.Add(-s.pendingTTL))
	if staleErr != nil {
		log.Printf("Cron: failed to expire stale purchases: %v", staleErr)
		if err == nil {
			err = staleErr
		}
	}
	res.StalePurchases = stale

	return res, err
}
