package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/outbox"
	"github.com/actioncore/blink-backend/pkg/outbox/payloads"
)

const (
	defaultOrderExpiryDays = 10
	expiryBatchLimit       = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pendingRemover interface {
	Remove(ctx context.Context, memo string) error
}

// OrderTTLJobParams configure the pending order expiry job.
type OrderTTLJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Orders     orders.Repository
	Outbox     outboxEmitter
	Pending    pendingRemover
	ExpiryDays int
}

// NewOrderTTLJob builds the cron job that cancels stale pending orders.
// Orders that never saw a matching on-chain payment are moved to CANCELLED
// after the expiry window so merchant dashboards stop showing them as open.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	expiryDays := params.ExpiryDays
	if expiryDays <= 0 {
		expiryDays = defaultOrderExpiryDays
	}
	return &orderTTLJob{
		logg:       params.Logger,
		db:         params.DB,
		orders:     params.Orders,
		outbox:     params.Outbox,
		pending:    params.Pending,
		expiryDays: expiryDays,
		now:        time.Now,
	}, nil
}

type orderTTLJob struct {
	logg       *logger.Logger
	db         txRunner
	orders     orders.Repository
	outbox     outboxEmitter
	pending    pendingRemover
	expiryDays int
	now        func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

// Run expires one batch per cycle; the next cycle picks up the remainder.
func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.expiryDays) * 24 * time.Hour)
	stale, err := j.orders.FindExpiredPending(ctx, cutoff, expiryBatchLimit)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	expired := 0
	for _, order := range stale {
		if err := j.expireOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "order expiry loop complete")
	return multierr.Combine(errs...)
}

func (j *orderTTLJob) expireOrder(ctx context.Context, order models.Order) error {
	now := j.now().UTC()
	var cancelled bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		// The guarded update loses to a concurrent confirmation, in which
		// case the order stays settled and no event is written.
		updated, err := j.orders.WithTx(tx).MarkCancelled(ctx, order.ID)
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}
		cancelled = true
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderExpiredEvent{
				OrderID:     order.ID,
				MerchantID:  order.MerchantID,
				OrderIDMemo: order.OrderIDMemo,
				ExpiredAt:   now,
			},
		})
	})
	if err != nil {
		return err
	}
	if cancelled && j.pending != nil {
		if err := j.pending.Remove(ctx, order.OrderIDMemo); err != nil {
			j.logg.Warn(j.logg.WithOrderMemo(ctx, order.OrderIDMemo), "pending index removal failed")
		}
	}
	return nil
}
