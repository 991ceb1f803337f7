package models

import (
	"time"

	"github.com/google/uuid"
)

// Merchant owns blinks and receives the 99% leg of each payment.
type Merchant struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletAddress string    `gorm:"column:wallet_address;not null;uniqueIndex:ux_merchants_wallet_address"`
	PayoutAddress *string   `gorm:"column:payout_address"`
	Email         string    `gorm:"column:email;not null;uniqueIndex:ux_merchants_email"`
	BusinessName  *string   `gorm:"column:business_name"`
	APIKey        string    `gorm:"column:api_key;not null;uniqueIndex:ux_merchants_api_key"`

	Subscription *Subscription `gorm:"foreignKey:MerchantID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Payout returns the address payments settle to, falling back to the
// merchant wallet when no dedicated payout address is set.
func (m Merchant) Payout() string {
	if m.PayoutAddress != nil && *m.PayoutAddress != "" {
		return *m.PayoutAddress
	}
	return m.WalletAddress
}
