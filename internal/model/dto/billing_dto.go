package dto

import "time"

// PackageInfo 前台展示的套餐信息
type PackageInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	PackageType  string  `json:"package_type"`
	Credits      *int    `json:"credits"`
	PriceGBP     float64 `json:"price_gbp"`
	DisplayOrder int     `json:"display_order"`
}

// CheckoutRequest 创建支付会话请求
type CheckoutRequest struct {
	Email     string `json:"email" binding:"required,email"`
	PackageID string `json:"package_id" binding:"required,uuid"`
}

// CheckoutResponse 支付会话响应
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// PurchaseStatus 支付回跳页查询的订单状态
type PurchaseStatus struct {
	SessionID      string     `json:"session_id"`
	Status         string     `json:"status"`
	CreditsGranted *int       `json:"credits_granted"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// CapacityInfo 账户额度信息，Remaining 为 -1 表示无限
type CapacityInfo struct {
	HasCapacity bool `json:"has_capacity"`
	Remaining   int  `json:"remaining"`
	Unlimited   bool `json:"unlimited"`
}
