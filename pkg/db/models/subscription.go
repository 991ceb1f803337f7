package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/actioncore/blink-backend/pkg/enums"
)

// Subscription tracks the merchant's plan and blink quota.
type Subscription struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID        uuid.UUID                `gorm:"column:merchant_id;type:uuid;not null;uniqueIndex:ux_subscriptions_merchant"`
	Tier              enums.SubscriptionTier   `gorm:"column:tier;type:text;not null;default:'FREE'"`
	Status            enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	ActiveBlinksLimit int                      `gorm:"column:active_blinks_limit;not null;default:3"`
	CurrentPeriodEnd  *time.Time               `gorm:"column:current_period_end"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// IsActive reports whether the subscription allows serving blinks.
func (s Subscription) IsActive() bool {
	return s.Status == enums.SubscriptionStatusActive
}
