package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actioncore/blink-backend/pkg/enums"
)

// Order is the durable record of a single payment attempt. The amount split
// is frozen at creation; signature and confirmed_at are written exactly once
// when the payment settles.
type Order struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID uuid.UUID  `gorm:"column:merchant_id;type:uuid;not null;index"`
	BlinkID    *uuid.UUID `gorm:"column:blink_id;type:uuid;index"`

	CustomerWallet  string  `gorm:"column:customer_wallet;not null"`
	CustomerEmail   *string `gorm:"column:customer_email"`
	ShippingName    *string `gorm:"column:shipping_name"`
	ShippingAddress *string `gorm:"column:shipping_address"`
	ShippingPhone   *string `gorm:"column:shipping_phone"`

	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(20,9);not null"`
	FeeAmount      decimal.Decimal `gorm:"column:fee_amount;type:numeric(20,9);not null"`
	MerchantAmount decimal.Decimal `gorm:"column:merchant_amount;type:numeric(20,9);not null"`
	Currency       string          `gorm:"column:currency;type:text;not null;default:'SOL'"`
	TokenMintID    *uuid.UUID      `gorm:"column:token_mint_id;type:uuid"`
	TokenDecimals  int             `gorm:"column:token_decimals;not null;default:9"`

	OrderIDMemo          string            `gorm:"column:order_id_memo;not null;uniqueIndex:ux_orders_order_id_memo"`
	Status               enums.OrderStatus `gorm:"column:status;type:text;not null;default:'PENDING';index"`
	TransactionSignature *string           `gorm:"column:transaction_signature"`
	ConfirmedAt          *time.Time        `gorm:"column:confirmed_at"`

	Merchant *Merchant `gorm:"foreignKey:MerchantID"`
	Blink    *Blink    `gorm:"foreignKey:BlinkID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsNative reports whether the order settles in SOL rather than an SPL token.
func (o Order) IsNative() bool {
	return o.TokenMintID == nil
}
