package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/internal/payments"
	dbpkg "github.com/actioncore/blink-backend/pkg/db"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/metrics"
	"github.com/actioncore/blink-backend/pkg/outbox"
	"github.com/actioncore/blink-backend/pkg/outbox/payloads"
	"github.com/actioncore/blink-backend/pkg/pagination"
)

// memoCreateAttempts bounds regenerate-on-conflict when two orders draw the
// same memo in the same millisecond.
const memoCreateAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pendingIndexer interface {
	Register(ctx context.Context, memo string, entry PendingEntry) error
	Remove(ctx context.Context, memo string) error
}

// PaymentRecorder accumulates merchant analytics counters as best-effort
// side effects of a confirmed payment.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal, currency string) error
}

// Service defines order lifecycle operations.
type Service interface {
	CreatePending(ctx context.Context, input CreatePendingInput) (*models.Order, error)
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	GetByMemo(ctx context.Context, orderIDMemo string) (*models.Order, error)
	GetForMerchant(ctx context.Context, merchantID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	pending   pendingIndexer
	analytics PaymentRecorder
	payment   *metrics.PaymentMetrics
	logg      *logger.Logger
}

// NewService wires order lifecycle dependencies. The analytics recorder and
// metrics are optional.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	pending pendingIndexer,
	analytics PaymentRecorder,
	payment *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if pending == nil {
		return nil, fmt.Errorf("pending index required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		pending:   pending,
		analytics: analytics,
		payment:   payment,
		logg:      logg,
	}, nil
}

// CreatePending writes the durable PENDING row before any transaction is
// handed back for signing. The converse ordering would allow a paid
// transaction with no matching order, which reconciliation cannot recover
// from; an order that is never paid is just an abandoned cart.
func (s *service) CreatePending(ctx context.Context, input CreatePendingInput) (*models.Order, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	var order *models.Order
	for attempt := 1; attempt <= memoCreateAttempts; attempt++ {
		memo, err := payments.NewOrderMemo()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order memo")
		}

		candidate := buildOrder(input, memo)
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.Create(ctx, candidate); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   candidate.ID,
				Version:       1,
				Data: payloads.OrderCreatedEvent{
					OrderID:        candidate.ID,
					MerchantID:     candidate.MerchantID,
					BlinkID:        candidate.BlinkID,
					OrderIDMemo:    candidate.OrderIDMemo,
					Amount:         candidate.Amount,
					Currency:       candidate.Currency,
					CustomerWallet: candidate.CustomerWallet,
					CreatedAt:      time.Now().UTC(),
				},
			})
		})
		if err == nil {
			order = candidate
			break
		}
		if dbpkg.IsUniqueViolation(err, "ux_orders_order_id_memo") && attempt < memoCreateAttempts {
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pending order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "could not allocate a unique order memo")
	}

	// The index is an accelerator only; losing the write costs reconciliation
	// latency, not correctness.
	if err := s.pending.Register(ctx, order.OrderIDMemo, PendingEntry{
		OrderID:        order.ID,
		MerchantID:     order.MerchantID,
		Amount:         order.Amount,
		CustomerWallet: order.CustomerWallet,
	}); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithOrderMemo(ctx, order.OrderIDMemo), "pending index registration failed")
	}

	s.payment.IncOrderCreated(order.Currency)
	return order, nil
}

// Confirm settles an order against on-chain proof. Re-delivery is safe: an
// order already past PENDING is returned unchanged with Transitioned=false.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	memo := strings.TrimSpace(input.OrderIDMemo)
	signature := strings.TrimSpace(input.Signature)
	if memo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order memo required")
	}
	if signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction signature required")
	}

	result := &ConfirmResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByMemo(ctx, memo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status != enums.OrderStatusPending {
			result.Order = order
			return nil
		}

		now := time.Now().UTC()
		updated, err := repo.MarkConfirmed(ctx, order.ID, signature, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if !updated {
			// Lost a race with another confirmation; re-read and no-op.
			current, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			result.Order = current
			return nil
		}

		order.Status = enums.OrderStatusConfirmed
		order.TransactionSignature = &signature
		order.ConfirmedAt = &now
		result.Order = order
		result.Transitioned = true

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderConfirmedEvent{
				OrderID:              order.ID,
				MerchantID:           order.MerchantID,
				OrderIDMemo:          order.OrderIDMemo,
				Amount:               order.Amount,
				MerchantAmount:       order.MerchantAmount,
				FeeAmount:            order.FeeAmount,
				Currency:             order.Currency,
				TransactionSignature: signature,
				ConfirmedAt:          now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Transitioned {
		if err := s.pending.Remove(ctx, memo); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithOrderMemo(ctx, memo), "pending index removal failed")
		}
		if s.analytics != nil {
			if err := s.analytics.RecordPayment(ctx, result.Order.MerchantID, result.Order.Amount, result.Order.Currency); err != nil && s.logg != nil {
				s.logg.Warn(s.logg.WithMerchantID(ctx, result.Order.MerchantID.String()), "analytics counters failed")
			}
		}
		s.payment.IncOrderConfirmed()
	}
	return result, nil
}

func (s *service) GetByMemo(ctx context.Context, orderIDMemo string) (*models.Order, error) {
	memo := strings.TrimSpace(orderIDMemo)
	if memo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order memo required")
	}
	order, err := s.repo.FindByMemo(ctx, memo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetForMerchant(ctx context.Context, merchantID, orderID uuid.UUID) (*models.Order, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.MerchantID != merchantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.MerchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}

	query := ListOrdersParams{
		MerchantID: params.MerchantID,
		Status:     params.Status,
		Limit:      params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func validateCreate(input CreatePendingInput) error {
	if input.MerchantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	if strings.TrimSpace(input.CustomerWallet) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer wallet required")
	}
	if strings.TrimSpace(input.Currency) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "currency required")
	}
	if !input.Split.Total.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Split.Merchant.Add(input.Split.Fee).Equal(input.Split.Total) {
		return pkgerrors.New(pkgerrors.CodeValidation, "fee split does not sum to total")
	}
	if input.RequiresShipping {
		if input.Shipping == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping details required for physical goods")
		}
		if strings.TrimSpace(input.Shipping.Email) == "" ||
			strings.TrimSpace(input.Shipping.Name) == "" ||
			strings.TrimSpace(input.Shipping.Address) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "email, name, and address are required for physical goods")
		}
	}
	return nil
}

func buildOrder(input CreatePendingInput, memo string) *models.Order {
	order := &models.Order{
		MerchantID:     input.MerchantID,
		BlinkID:        input.BlinkID,
		CustomerWallet: strings.TrimSpace(input.CustomerWallet),
		Amount:         input.Split.Total,
		FeeAmount:      input.Split.Fee,
		MerchantAmount: input.Split.Merchant,
		Currency:       input.Currency,
		TokenMintID:    input.TokenMintID,
		TokenDecimals:  input.TokenDecimals,
		OrderIDMemo:    memo,
		Status:         enums.OrderStatusPending,
	}
	if input.TokenMintID == nil {
		order.TokenDecimals = payments.NativeDecimals
	}
	if input.RequiresShipping && input.Shipping != nil {
		email := strings.TrimSpace(input.Shipping.Email)
		name := strings.TrimSpace(input.Shipping.Name)
		address := strings.TrimSpace(input.Shipping.Address)
		order.CustomerEmail = &email
		order.ShippingName = &name
		order.ShippingAddress = &address
		order.ShippingPhone = input.Shipping.Phone
	}
	return order
}
