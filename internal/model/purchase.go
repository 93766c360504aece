package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
	PurchaseStatusRefunded  = "refunded"
)

type Purchase struct {
	ID                   string     `gorm:"primaryKey;size:36" json:"id"`
	AccountID            string     `gorm:"size:36;not null;index" json:"account_id"`
	PackageID            string     `gorm:"size:36;not null;index" json:"package_id"`
	StripeSessionID      string     `gorm:"size:255;uniqueIndex;not null" json:"stripe_session_id"`
	StripeSubscriptionID *string    `gorm:"size:255;index" json:"stripe_subscription_id,omitempty"`
	CreditsGranted       *int       `json:"credits_granted"` // 下单时 Package.Credits 的快照
	AmountGBP            float64    `gorm:"type:decimal(10,2);not null" json:"amount_gbp"`
	Status               string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	PurchasedAt          time.Time  `gorm:"autoCreateTime" json:"purchased_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
