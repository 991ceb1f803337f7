package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	redispkg "github.com/actioncore/blink-backend/pkg/redis"
)

// PendingEntry is the cache-resident lookup record for one pending order,
// keyed by its order memo. Non-authoritative: a miss means "unknown", never
// "does not exist"; the durable row is the record of truth.
type PendingEntry struct {
	OrderID        uuid.UUID       `json:"orderId"`
	MerchantID     uuid.UUID       `json:"merchantId"`
	Amount         decimal.Decimal `json:"amount"`
	CustomerWallet string          `json:"customerWallet"`
}

type pendingStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PendingOrderKey(memo string) string
}

// PendingIndex accelerates signature-to-order resolution while a payment is
// in flight. Entries expire on their own; removal on confirmation just
// frees them early.
type PendingIndex struct {
	store pendingStore
	ttl   time.Duration
}

// NewPendingIndex wires the index over the shared cache client.
func NewPendingIndex(store pendingStore, ttl time.Duration) *PendingIndex {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PendingIndex{store: store, ttl: ttl}
}

// Register records a pending order under its memo.
func (p *PendingIndex) Register(ctx context.Context, memo string, entry PendingEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, p.store.PendingOrderKey(memo), string(raw), p.ttl)
}

// Lookup returns the entry for memo, or found=false on a cache miss.
func (p *PendingIndex) Lookup(ctx context.Context, memo string) (*PendingEntry, bool, error) {
	raw, err := p.store.Get(ctx, p.store.PendingOrderKey(memo))
	if err != nil {
		if errors.Is(err, redispkg.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var entry PendingEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

// Remove deletes the entry for memo.
func (p *PendingIndex) Remove(ctx context.Context, memo string) error {
	return p.store.Del(ctx, p.store.PendingOrderKey(memo))
}
