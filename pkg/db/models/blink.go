package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actioncore/blink-backend/pkg/enums"
)

// Blink is a shareable payment link definition.
type Blink struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID       uuid.UUID        `gorm:"column:merchant_id;type:uuid;not null;index"`
	Slug             string           `gorm:"column:slug;not null;uniqueIndex:ux_blinks_slug"`
	Title            string           `gorm:"column:title;not null"`
	Description      string           `gorm:"column:description;not null"`
	Icon             string           `gorm:"column:icon;not null"`
	Label            string           `gorm:"column:label;not null"`
	Amount           decimal.Decimal  `gorm:"column:amount;type:numeric(20,9);not null"`
	Currency         string           `gorm:"column:currency;type:text;not null;default:'SOL'"`
	ActionType       enums.ActionType `gorm:"column:action_type;type:text;not null;default:'TRANSFER'"`
	TokenMintID      *uuid.UUID       `gorm:"column:token_mint_id;type:uuid"`
	RequiresShipping bool             `gorm:"column:requires_shipping;not null;default:false"`
	Active           bool             `gorm:"column:active;not null;default:true"`

	Merchant  *Merchant `gorm:"foreignKey:MerchantID"`
	TokenMint *Token    `gorm:"foreignKey:TokenMintID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
