package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageRecord 积分消耗审计记录，只追加
type UsageRecord struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID    string    `gorm:"size:36;not null;index" json:"account_id"`
	CreditsUsed  int       `gorm:"not null" json:"credits_used"`
	Role         string    `gorm:"size:255" json:"role"`
	Trust        string    `gorm:"size:255" json:"trust"`
	SubmissionID string    `gorm:"size:36;uniqueIndex;not null" json:"submission_id"`
	UsedAt       time.Time `gorm:"autoCreateTime;index" json:"used_at"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}

func (u *UsageRecord) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
