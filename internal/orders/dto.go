package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actioncore/blink-backend/internal/payments"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
)

// ShippingDetails carries the contact fields required for physical-good
// flows. Phone is optional; the rest are mandatory when shipping applies.
type ShippingDetails struct {
	Email   string
	Name    string
	Address string
	Phone   *string
}

// CreatePendingInput captures everything needed to persist a pending order
// before the unsigned transaction is handed back for signing.
type CreatePendingInput struct {
	MerchantID       uuid.UUID
	BlinkID          *uuid.UUID
	CustomerWallet   string
	Currency         string
	TokenMintID      *uuid.UUID
	TokenDecimals    int
	Split            payments.Split
	RequiresShipping bool
	Shipping         *ShippingDetails
}

// ConfirmInput identifies the order to settle and the on-chain proof.
type ConfirmInput struct {
	OrderIDMemo string
	Signature   string
}

// ConfirmResult reports the order state after a confirmation attempt and
// whether this call performed the transition.
type ConfirmResult struct {
	Order        *models.Order
	Transitioned bool
}

// ListParams configures merchant order listing.
type ListParams struct {
	MerchantID uuid.UUID
	Status     *enums.OrderStatus
	Limit      int
	Cursor     string
}

// ListResult wraps returned orders and the cursor for the next page.
type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

// OrderView is the API-facing projection of an order.
type OrderView struct {
	ID                   uuid.UUID       `json:"id"`
	OrderIDMemo          string          `json:"orderIdMemo"`
	Status               string          `json:"status"`
	Amount               decimal.Decimal `json:"amount"`
	FeeAmount            decimal.Decimal `json:"feeAmount"`
	MerchantAmount       decimal.Decimal `json:"merchantAmount"`
	Currency             string          `json:"currency"`
	CustomerWallet       string          `json:"customerWallet"`
	TransactionSignature *string         `json:"transactionSignature,omitempty"`
	ConfirmedAt          *time.Time      `json:"confirmedAt,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// NewOrderView projects an order for API responses.
func NewOrderView(order models.Order) OrderView {
	return OrderView{
		ID:                   order.ID,
		OrderIDMemo:          order.OrderIDMemo,
		Status:               string(order.Status),
		Amount:               order.Amount,
		FeeAmount:            order.FeeAmount,
		MerchantAmount:       order.MerchantAmount,
		Currency:             order.Currency,
		CustomerWallet:       order.CustomerWallet,
		TransactionSignature: order.TransactionSignature,
		ConfirmedAt:          order.ConfirmedAt,
		CreatedAt:            order.CreatedAt,
	}
}
