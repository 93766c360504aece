package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account 以邮箱为主键的计费账户
type Account struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	Email              string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Credits            int        `gorm:"not null;default:0" json:"credits"`
	IsUnlimited        bool       `gorm:"not null;default:false" json:"is_unlimited"`
	UnlimitedExpiresAt *time.Time `json:"unlimited_expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// UnlimitedActive 订阅标记为 true 且未过期（过期时间为空表示永不过期）
func (a *Account) UnlimitedActive(now time.Time) bool {
	if !a.IsUnlimited {
		return false
	}
	return a.UnlimitedExpiresAt == nil || a.UnlimitedExpiresAt.After(now)
}
