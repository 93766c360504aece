package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	eventKeyPrefix = "stripe:event:"

	stateProcessing = "processing"
	stateDone       = "done"

	// 处理中的占位在进程崩溃后自动过期，允许重投
	processingTTL = 5 * time.Minute
)

// Guard 基于 Redis 的 webhook 事件去重
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGuard 创建去重器，ttl 为已完成事件的保留时间
func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

func eventKey(eventID string) string {
	return eventKeyPrefix + eventID
}

// Claim 抢占事件处理权，已被处理或正在处理时返回 false
func (g *Guard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("empty event id")
	}

	ok, err := g.rdb.SetNX(ctx, eventKey(eventID), stateProcessing, processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	return ok, nil
}

// Complete 标记事件已处理
func (g *Guard) Complete(ctx context.Context, eventID string) error {
	if err := g.rdb.Set(ctx, eventKey(eventID), stateDone, g.ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete event: %w", err)
	}
	return nil
}

// Release 处理失败时释放，允许 provider 重试
func (g *Guard) Release(ctx context.Context, eventID string) error {
	if err := g.rdb.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to release event: %w", err)
	}
	return nil
}
