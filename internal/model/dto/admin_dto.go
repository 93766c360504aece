package dto

import "time"

// AdminLoginRequest 管理员登录请求
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse 管理员登录响应
type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AccountInfo 后台账户信息
type AccountInfo struct {
	ID                 string        `json:"id"`
	Email              string        `json:"email"`
	Credits            int           `json:"credits"`
	IsUnlimited        bool          `json:"is_unlimited"`
	UnlimitedExpiresAt *time.Time    `json:"unlimited_expires_at"`
	CreatedAt          time.Time     `json:"created_at"`
	Capacity           *CapacityInfo `json:"capacity,omitempty"`
	TotalCreditsUsed   int64         `json:"total_credits_used"`
}

// AddCreditsRequest 手动充值请求
type AddCreditsRequest struct {
	Credits int `json:"credits" binding:"required"`
}

// SubscriptionRequest 手动开通订阅请求
type SubscriptionRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

// PurchaseInfo 购买记录
type PurchaseInfo struct {
	ID             string     `json:"id"`
	PackageName    string     `json:"package_name"`
	CreditsGranted *int       `json:"credits_granted"`
	AmountGBP      float64    `json:"amount_gbp"`
	Status         string     `json:"status"`
	PurchasedAt    time.Time  `json:"purchased_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// UsageInfo 消耗记录
type UsageInfo struct {
	ID           string    `json:"id"`
	CreditsUsed  int       `json:"credits_used"`
	Role         string    `json:"role"`
	Trust        string    `json:"trust"`
	SubmissionID string    `json:"submission_id"`
	UsedAt       time.Time `json:"used_at"`
}

// CreatePackageRequest 创建套餐请求
type CreatePackageRequest struct {
	Name          string  `json:"name" binding:"required,max=100"`
	Description   string  `json:"description"`
	PackageType   string  `json:"package_type" binding:"required,oneof=one_time subscription"`
	Credits       *int    `json:"credits" binding:"omitempty,min=1"`
	PriceGBP      float64 `json:"price_gbp" binding:"required,gt=0"`
	DisplayOrder  int     `json:"display_order"`
	StripePriceID string  `json:"stripe_price_id"` // 为空时自动创建 Stripe 产品和价格
}

// UpdatePackageRequest 更新套餐请求
type UpdatePackageRequest struct {
	Name         *string  `json:"name,omitempty" binding:"omitempty,max=100"`
	Description  *string  `json:"description,omitempty"`
	PriceGBP     *float64 `json:"price_gbp,omitempty" binding:"omitempty,gt=0"`
	IsActive     *bool    `json:"is_active,omitempty"`
	DisplayOrder *int     `json:"display_order,omitempty"`
}

// AdminPackageInfo 后台套餐信息
type AdminPackageInfo struct {
	PackageInfo
	StripePriceID string    `json:"stripe_price_id"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
