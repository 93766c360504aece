package service

import (
	"context"

	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
)

// Generator 生成 Supporting Information 文本
type Generator interface {
	Generate(ctx context.Context, in dto.GenerationInput) (string, error)
}

// Notifier 邮件通知
type Notifier interface {
	SendStatement(ctx context.Context, to, name, role, trust, statement string) error
	SendInsufficientCredits(ctx context.Context, to, name, checkoutURL string) error
}

// CheckoutProvider 支付平台的下单接口
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, p payment.CheckoutParams) (*payment.CheckoutSession, error)
	CreateProductPrice(ctx context.Context, p payment.ProductParams) (string, error)
}

// WebhookVerifier 校验并解析支付平台 webhook
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (*payment.Event, error)
}

// ArtifactStore 生成结果归档
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// EventGuard webhook 事件去重
type EventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

// TaskRunner 后台任务执行
type TaskRunner interface {
	Submit(name string, fn tasks.Func) string
}
