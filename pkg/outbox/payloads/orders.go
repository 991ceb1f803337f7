package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted when a pending order is written.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID       `json:"orderId"`
	MerchantID     uuid.UUID       `json:"merchantId"`
	BlinkID        *uuid.UUID      `json:"blinkId,omitempty"`
	OrderIDMemo    string          `json:"orderIdMemo"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CustomerWallet string          `json:"customerWallet"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// OrderConfirmedEvent is emitted exactly once when a payment settles.
type OrderConfirmedEvent struct {
	OrderID              uuid.UUID       `json:"orderId"`
	MerchantID           uuid.UUID       `json:"merchantId"`
	OrderIDMemo          string          `json:"orderIdMemo"`
	Amount               decimal.Decimal `json:"amount"`
	MerchantAmount       decimal.Decimal `json:"merchantAmount"`
	FeeAmount            decimal.Decimal `json:"feeAmount"`
	Currency             string          `json:"currency"`
	TransactionSignature string          `json:"transactionSignature"`
	ConfirmedAt          time.Time       `json:"confirmedAt"`
}

// OrderExpiredEvent is emitted when a pending order is cancelled by the TTL job.
type OrderExpiredEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	MerchantID  uuid.UUID `json:"merchantId"`
	OrderIDMemo string    `json:"orderIdMemo"`
	ExpiredAt   time.Time `json:"expiredAt"`
}
