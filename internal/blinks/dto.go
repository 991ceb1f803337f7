package blinks

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actioncore/blink-backend/pkg/db/models"
)

// CreateInput captures a new payment link definition.
type CreateInput struct {
	MerchantID  uuid.UUID
	Slug        string
	Title       string
	Description string
	Icon        string
	Label       string
	Amount      decimal.Decimal
	Currency    string
	ActionType  string
}

// UpdateInput carries the editable fields of a blink. Nil means unchanged.
type UpdateInput struct {
	MerchantID  uuid.UUID
	BlinkID     uuid.UUID
	Title       *string
	Description *string
	Icon        *string
	Label       *string
	Amount      *decimal.Decimal
	Active      *bool
}

// ActionParameter describes one input field a wallet should collect.
type ActionParameter struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// ActionLink is one signable action offered by the metadata document.
type ActionLink struct {
	Label      string            `json:"label"`
	Href       string            `json:"href"`
	Parameters []ActionParameter `json:"parameters,omitempty"`
}

// ActionMetadata is the wallet-facing description of a payment link,
// rendered on GET and cached briefly.
type ActionMetadata struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Label       string `json:"label"`
	Disabled    bool   `json:"disabled,omitempty"`
	Links       *struct {
		Actions []ActionLink `json:"actions"`
	} `json:"links,omitempty"`
}

// ShippingInput carries customer contact fields for physical flows.
type ShippingInput struct {
	Email   string
	Name    string
	Address string
	Phone   *string
}

// CreateTransactionInput is a signed-transaction request from a wallet.
type CreateTransactionInput struct {
	Slug     string
	Account  string
	Shipping *ShippingInput
}

// TransactionResponse is the wallet-facing result: an unsigned base64
// transaction plus a human-readable receipt line.
type TransactionResponse struct {
	Transaction string `json:"transaction"`
	Message     string `json:"message"`
	OrderMemo   string `json:"orderMemo"`
	OrderID     string `json:"orderId"`
}

// View is the dashboard projection of a blink.
type View struct {
	ID         uuid.UUID       `json:"id"`
	Slug       string          `json:"slug"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	ActionType string          `json:"actionType"`
	Active     bool            `json:"active"`
}

// NewView projects a blink for API responses.
func NewView(blink models.Blink) View {
	return View{
		ID:         blink.ID,
		Slug:       blink.Slug,
		Title:      blink.Title,
		Amount:     blink.Amount,
		Currency:   blink.Currency,
		ActionType: blink.ActionType.String(),
		Active:     blink.Active,
	}
}
