package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PackageTypeOneTime      = "one_time"
	PackageTypeSubscription = "subscription"
)

type Package struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	PackageType   string    `gorm:"size:20;not null" json:"package_type"` // one_time, subscription
	Credits       *int      `json:"credits"`                              // nil 表示无限次
	PriceGBP      float64   `gorm:"type:decimal(10,2);not null" json:"price_gbp"`
	StripePriceID string    `gorm:"size:100;uniqueIndex;not null" json:"stripe_price_id"`
	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	DisplayOrder  int       `gorm:"not null;default:0" json:"display_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Package) TableName() string {
	return "packages"
}

func (p *Package) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
