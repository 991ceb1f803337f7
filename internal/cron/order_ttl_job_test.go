package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/outbox"
	"github.com/actioncore/blink-backend/pkg/outbox/payloads"
	"github.com/actioncore/blink-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOrdersRepo struct {
	stale       []models.Order
	cancelOK    map[uuid.UUID]bool
	cancelCalls []uuid.UUID
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) error { return nil }

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) FindByMemo(ctx context.Context, memo string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) MarkConfirmed(ctx context.Context, id uuid.UUID, signature string, now time.Time) (bool, error) {
	return false, nil
}

func (f *fakeOrdersRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	f.cancelCalls = append(f.cancelCalls, id)
	return f.cancelOK[id], nil
}

func (f *fakeOrdersRepo) List(ctx context.Context, params orders.ListOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeOrdersRepo) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return f.stale, nil
}

type fakeOutboxEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeOutboxEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakePendingRemover struct {
	removed []string
	err     error
}

func (f *fakePendingRemover) Remove(ctx context.Context, memo string) error {
	f.removed = append(f.removed, memo)
	return f.err
}

func staleOrder(memo string) models.Order {
	return models.Order{
		ID:          uuid.New(),
		MerchantID:  uuid.New(),
		OrderIDMemo: memo,
		Status:      enums.OrderStatusPending,
	}
}

func newOrderTTLJobForTest(t *testing.T, repo *fakeOrdersRepo, emitter *fakeOutboxEmitter, pending *fakePendingRemover) *orderTTLJob {
	t.Helper()
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:      fakeTxRunner{},
		Orders:  repo,
		Outbox:  emitter,
		Pending: pending,
	})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	job, ok := jobIface.(*orderTTLJob)
	if !ok {
		t.Fatalf("expected orderTTLJob, got %T", jobIface)
	}
	job.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	return job
}

func TestOrderTTLJob_CancelsStaleOrdersAndEmits(t *testing.T) {
	first := staleOrder("AC-1700000000000-AAAAAA")
	second := staleOrder("AC-1700000000001-BBBBBB")
	repo := &fakeOrdersRepo{
		stale:    []models.Order{first, second},
		cancelOK: map[uuid.UUID]bool{first.ID: true, second.ID: true},
	}
	emitter := &fakeOutboxEmitter{}
	pending := &fakePendingRemover{}
	job := newOrderTTLJobForTest(t, repo, emitter, pending)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.cancelCalls) != 2 {
		t.Fatalf("expected 2 cancellations, got %d", len(repo.cancelCalls))
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventOrderExpired {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.OrderExpiredEvent)
	if !ok {
		t.Fatalf("expected expired event payload, got %T", event.Data)
	}
	if payload.OrderID != first.ID {
		t.Fatalf("unexpected order id: %s", payload.OrderID)
	}
	if payload.ExpiredAt.IsZero() {
		t.Fatal("expected expiry timestamp")
	}
	if len(pending.removed) != 2 {
		t.Fatalf("expected 2 index removals, got %d", len(pending.removed))
	}
	if pending.removed[0] != first.OrderIDMemo {
		t.Fatalf("unexpected removed memo: %s", pending.removed[0])
	}
}

func TestOrderTTLJob_ConcurrentConfirmationWins(t *testing.T) {
	order := staleOrder("AC-1700000000000-CCCCCC")
	repo := &fakeOrdersRepo{
		stale:    []models.Order{order},
		cancelOK: map[uuid.UUID]bool{},
	}
	emitter := &fakeOutboxEmitter{}
	pending := &fakePendingRemover{}
	job := newOrderTTLJobForTest(t, repo, emitter, pending)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("expected no events for an order settled mid-flight, got %d", len(emitter.events))
	}
	if len(pending.removed) != 0 {
		t.Fatalf("expected no index removals, got %d", len(pending.removed))
	}
}

func TestOrderTTLJob_IndexRemovalFailureIsNonFatal(t *testing.T) {
	order := staleOrder("AC-1700000000000-DDDDDD")
	repo := &fakeOrdersRepo{
		stale:    []models.Order{order},
		cancelOK: map[uuid.UUID]bool{order.ID: true},
	}
	emitter := &fakeOutboxEmitter{}
	pending := &fakePendingRemover{err: errors.New("redis down")}
	job := newOrderTTLJobForTest(t, repo, emitter, pending)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitter.events))
	}
}
