package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	redispkg "github.com/actioncore/blink-backend/pkg/redis"
)

// Counter amounts are stored as integer hundredths of a display unit so the
// cache only ever sees integers.
const amountScale = 2

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Get(ctx context.Context, key string) (string, error)
	CounterKey(parts ...string) string
}

// Service accumulates merchant-facing counters in the cache. All writes are
// best-effort from the caller's point of view; the durable order store is
// never blocked on these.
type Service struct {
	store counterStore
}

// MerchantStats is the read-side snapshot of a merchant's counters.
type MerchantStats struct {
	Clicks   int64           `json:"clicks"`
	Payments int64           `json:"payments"`
	Volume   decimal.Decimal `json:"volume"`
}

// NewService wires the counter store.
func NewService(store counterStore) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store required")
	}
	return &Service{store: store}, nil
}

// RecordClick counts a public view of a merchant's payment link.
func (s *Service) RecordClick(ctx context.Context, merchantID uuid.UUID, slug string) error {
	if _, err := s.store.Incr(ctx, s.store.CounterKey("clicks", merchantID.String())); err != nil {
		return err
	}
	_, err := s.store.Incr(ctx, s.store.CounterKey("blink_clicks", slug))
	return err
}

// RecordPayment counts a confirmed payment and adds its scaled amount to the
// merchant's volume counter.
func (s *Service) RecordPayment(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal, currency string) error {
	if _, err := s.store.Incr(ctx, s.store.CounterKey("payments", merchantID.String())); err != nil {
		return err
	}
	delta := amount.Shift(amountScale).Round(0).IntPart()
	_, err := s.store.IncrBy(ctx, s.store.CounterKey("volume", merchantID.String(), currency), delta)
	return err
}

// Stats reads the merchant's counters for one currency. Missing counters
// read as zero.
func (s *Service) Stats(ctx context.Context, merchantID uuid.UUID, currency string) (*MerchantStats, error) {
	clicks, err := s.readCounter(ctx, s.store.CounterKey("clicks", merchantID.String()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read click counter")
	}
	payments, err := s.readCounter(ctx, s.store.CounterKey("payments", merchantID.String()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read payment counter")
	}
	volumeRaw, err := s.readCounter(ctx, s.store.CounterKey("volume", merchantID.String(), currency))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read volume counter")
	}

	return &MerchantStats{
		Clicks:   clicks,
		Payments: payments,
		Volume:   decimal.New(volumeRaw, -amountScale),
	}, nil
}

func (s *Service) readCounter(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redispkg.Nil) {
			return 0, nil
		}
		return 0, err
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s holds non-integer value", key)
	}
	return value, nil
}
