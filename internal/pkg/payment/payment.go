package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/applysmartuk/statement_server/config"
)

// Stripe 事件类型
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventCheckoutExpired     = "checkout.session.expired"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// 支付会话模式
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// CheckoutParams 创建支付会话参数
type CheckoutParams struct {
	Email      string
	PriceID    string
	Mode       string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession 支付会话
type CheckoutSession struct {
	ID  string
	URL string
}

// ProductParams 创建产品和价格参数
type ProductParams struct {
	Name        string
	Description string
	PriceGBP    float64
	Recurring   bool
}

// Client Stripe 客户端
type Client struct {
	api           *client.API
	webhookSecret string
	currency      string
}

// NewClient 创建客户端，backends 为 nil 时使用 Stripe 官方地址
func NewClient(cfg *config.StripeConfig, backends *stripe.Backends) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyGBP)
	}

	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}
}

// CreateCheckoutSession 创建托管支付页会话
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		CustomerEmail: stripe.String(p.Email),
		Mode:          stripe.String(p.Mode),
		SuccessURL:    stripe.String(p.SuccessURL),
		CancelURL:     stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	// 订阅对象上没有 customer_email，把邮箱带到订阅的 metadata 里
	if p.Mode == ModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		}
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreateProductPrice 创建产品及价格，返回价格 ID
func (c *Client) CreateProductPrice(ctx context.Context, p ProductParams) (string, error) {
	productParams := &stripe.ProductParams{
		Name: stripe.String(p.Name),
	}
	if p.Description != "" {
		productParams.Description = stripe.String(p.Description)
	}
	productParams.Context = ctx

	product, err := c.api.Products.New(productParams)
	if err != nil {
		return "", fmt.Errorf("failed to create product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		Currency:   stripe.String(c.currency),
		UnitAmount: stripe.Int64(ToMinorUnits(p.PriceGBP)),
	}
	if p.Recurring {
		priceParams.Recurring = &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}
	priceParams.Context = ctx

	price, err := c.api.Prices.New(priceParams)
	if err != nil {
		return "", fmt.Errorf("failed to create price: %w", err)
	}

	return price.ID, nil
}

// ParseWebhook 校验 Stripe-Signature 并解析事件
func (c *Client) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var object map[string]interface{}
	if event.Data != nil {
		object = event.Data.Object
	}

	return &Event{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: object,
	}, nil
}

// ToMinorUnits 金额转换为便士
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
