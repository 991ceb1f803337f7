package blinks

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/internal/payments"
	"github.com/actioncore/blink-backend/internal/tokens"
	"github.com/actioncore/blink-backend/pkg/config"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	redispkg "github.com/actioncore/blink-backend/pkg/redis"
)

const (
	feeWalletAddr  = "GThUX1Atko4tqhN2NaiTazWSeFWMuiUvfFnyJyUghFMJ"
	payerAddr      = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	merchantWallet = "7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj"
	usdcMintAddr   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type stubBlinkRepo struct {
	bySlug      map[string]*models.Blink
	byID        map[uuid.UUID]*models.Blink
	slugCalls   int
	activeCount int64
	created     []*models.Blink
	updated     []*models.Blink
	listRows    []models.Blink
}

func (s *stubBlinkRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubBlinkRepo) Create(_ context.Context, blink *models.Blink) error {
	blink.ID = uuid.New()
	s.created = append(s.created, blink)
	return nil
}

func (s *stubBlinkRepo) FindBySlug(_ context.Context, slug string) (*models.Blink, error) {
	s.slugCalls++
	if blink, ok := s.bySlug[slug]; ok {
		return blink, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBlinkRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Blink, error) {
	if blink, ok := s.byID[id]; ok {
		return blink, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubBlinkRepo) ListByMerchant(_ context.Context, _ uuid.UUID) ([]models.Blink, error) {
	return s.listRows, nil
}

func (s *stubBlinkRepo) CountActiveByMerchant(_ context.Context, _ uuid.UUID) (int64, error) {
	return s.activeCount, nil
}

func (s *stubBlinkRepo) Update(_ context.Context, blink *models.Blink) error {
	s.updated = append(s.updated, blink)
	return nil
}

func (s *stubBlinkRepo) SetActive(_ context.Context, _ uuid.UUID, _ bool) error { return nil }

type stubBlinkTx struct{}

func (stubBlinkTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubMerchantLoader struct {
	merchants map[uuid.UUID]*models.Merchant
}

func (s *stubMerchantLoader) FindByID(_ context.Context, id uuid.UUID) (*models.Merchant, error) {
	if merchant, ok := s.merchants[id]; ok {
		return merchant, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubTokenResolver struct {
	resolved map[string]*tokens.Resolved
}

func (s *stubTokenResolver) Resolve(_ context.Context, symbol string) (*tokens.Resolved, error) {
	if resolved, ok := s.resolved[symbol]; ok {
		return resolved, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unsupported currency")
}

type stubOrderCreator struct {
	created []orders.CreatePendingInput
	err     error
}

func (s *stubOrderCreator) CreatePending(_ context.Context, input orders.CreatePendingInput) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, input)
	return &models.Order{
		ID:             uuid.New(),
		MerchantID:     input.MerchantID,
		BlinkID:        input.BlinkID,
		CustomerWallet: input.CustomerWallet,
		Amount:         input.Split.Total,
		FeeAmount:      input.Split.Fee,
		MerchantAmount: input.Split.Merchant,
		Currency:       input.Currency,
		OrderIDMemo:    "AC-1700000000000-ABC123",
		Status:         enums.OrderStatusPending,
	}, nil
}

type stubChainSource struct {
	hash solana.Hash
	err  error
}

func (s *stubChainSource) LatestBlockhash(_ context.Context) (solana.Hash, error) {
	return s.hash, s.err
}

type memoryActionCache struct {
	data      map[string]string
	rateAllow bool
	rateScope string
}

func newMemoryActionCache() *memoryActionCache {
	return &memoryActionCache{data: map[string]string{}, rateAllow: true}
}

func (m *memoryActionCache) Get(_ context.Context, key string) (string, error) {
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return "", redispkg.Nil
}

func (m *memoryActionCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memoryActionCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryActionCache) BlinkMetadataKey(slug string) string {
	return "ac:blink_metadata:" + slug
}

func (m *memoryActionCache) FixedWindowAllow(_ context.Context, scope string, _ int64, _ time.Duration) (bool, int64, error) {
	m.rateScope = scope
	return m.rateAllow, 1, nil
}

type stubClicks struct {
	clicks int
}

func (s *stubClicks) RecordClick(_ context.Context, _ uuid.UUID, _ string) error {
	s.clicks++
	return nil
}

type blinkFixture struct {
	repo      *stubBlinkRepo
	merchants *stubMerchantLoader
	tokens    *stubTokenResolver
	orders    *stubOrderCreator
	prober    *stubProber
	cache     *memoryActionCache
	clicks    *stubClicks
	svc       *Service
}

type stubProber struct {
	existing map[solana.PublicKey]bool
}

func (s *stubProber) AccountExists(_ context.Context, account solana.PublicKey) (bool, error) {
	return s.existing[account], nil
}

func newFixture(t *testing.T) *blinkFixture {
	t.Helper()

	f := &blinkFixture{
		repo:      &stubBlinkRepo{bySlug: map[string]*models.Blink{}, byID: map[uuid.UUID]*models.Blink{}},
		merchants: &stubMerchantLoader{merchants: map[uuid.UUID]*models.Merchant{}},
		tokens: &stubTokenResolver{resolved: map[string]*tokens.Resolved{
			"SOL": {Symbol: "SOL", Native: true, Decimals: 9},
		}},
		orders: &stubOrderCreator{},
		prober: &stubProber{existing: map[solana.PublicKey]bool{}},
		cache:  newMemoryActionCache(),
		clicks: &stubClicks{},
	}

	resolver, err := payments.NewResolver(f.prober)
	require.NoError(t, err)
	builder, err := payments.NewBuilder(resolver)
	require.NoError(t, err)

	svc, err := NewService(
		f.repo,
		stubBlinkTx{},
		f.merchants,
		f.tokens,
		f.orders,
		resolver,
		builder,
		&stubChainSource{hash: solana.MustHashFromBase58("4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM")},
		f.cache,
		f.clicks,
		config.PaymentsConfig{
			PlatformFeeWallet: feeWalletAddr,
			FeeRateBPS:        100,
			MetadataCacheTTL:  5 * time.Minute,
		},
		config.RateLimitConfig{WalletWindow: time.Minute, WalletLimit: 5},
		nil,
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func seedBlink(f *blinkFixture, currency string, actionType enums.ActionType) *models.Blink {
	merchantID := uuid.New()
	merchant := &models.Merchant{
		ID:            merchantID,
		WalletAddress: merchantWallet,
		Subscription: &models.Subscription{
			MerchantID:        merchantID,
			Status:            enums.SubscriptionStatusActive,
			ActiveBlinksLimit: 3,
		},
	}
	blink := &models.Blink{
		ID:               uuid.New(),
		MerchantID:       merchantID,
		Slug:             "coffee",
		Title:            "Coffee",
		Description:      "A cup of coffee",
		Icon:             "https://example.com/icon.png",
		Label:            "Buy coffee",
		Amount:           decimal.RequireFromString("0.1"),
		Currency:         currency,
		ActionType:       actionType,
		RequiresShipping: actionType.RequiresShipping(),
		Active:           true,
		Merchant:         merchant,
	}
	f.repo.bySlug["coffee"] = blink
	f.repo.byID[blink.ID] = blink
	f.merchants.merchants[merchantID] = merchant
	return blink
}

func TestCreateTransaction_NativeHappyPath(t *testing.T) {
	f := newFixture(t)
	blink := seedBlink(f, "SOL", enums.ActionTypeTransfer)

	resp, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Slug:    "coffee",
		Account: payerAddr,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Transaction)
	assert.Equal(t, "AC-1700000000000-ABC123", resp.OrderMemo)
	assert.Contains(t, resp.Message, "0.1 SOL")

	require.Len(t, f.orders.created, 1)
	created := f.orders.created[0]
	assert.Equal(t, blink.MerchantID, created.MerchantID)
	assert.True(t, created.Split.Fee.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, created.Split.Merchant.Equal(decimal.RequireFromString("0.099")))
	assert.Equal(t, "wallet:"+payerAddr, f.cache.rateScope)
}

func TestCreateTransaction_RateLimited(t *testing.T) {
	f := newFixture(t)
	seedBlink(f, "SOL", enums.ActionTypeTransfer)
	f.cache.rateAllow = false

	_, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Slug:    "coffee",
		Account: payerAddr,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeRateLimit, pkgerrors.As(err).Code())
	assert.Empty(t, f.orders.created, "no order on rejected request")
}

func TestCreateTransaction_PayerATAMissing_NoOrder(t *testing.T) {
	f := newFixture(t)
	tokenID := uuid.New()
	f.tokens.resolved["USDC"] = &tokens.Resolved{
		Symbol:   "USDC",
		TokenID:  &tokenID,
		Mint:     solana.MustPublicKeyFromBase58(usdcMintAddr),
		Decimals: 6,
	}
	seedBlink(f, "USDC", enums.ActionTypeSPLToken)

	_, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Slug:    "coffee",
		Account: payerAddr,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePrecondition, pkgerrors.As(err).Code())
	assert.Empty(t, f.orders.created, "precondition failures leave no order rows")
}

func TestCreateTransaction_SPLHappyPath(t *testing.T) {
	f := newFixture(t)
	tokenID := uuid.New()
	mint := solana.MustPublicKeyFromBase58(usdcMintAddr)
	f.tokens.resolved["USDC"] = &tokens.Resolved{
		Symbol:   "USDC",
		TokenID:  &tokenID,
		Mint:     mint,
		Decimals: 6,
	}
	seedBlink(f, "USDC", enums.ActionTypeSPLToken)

	payer := solana.MustPublicKeyFromBase58(payerAddr)
	merchant := solana.MustPublicKeyFromBase58(merchantWallet)
	fee := solana.MustPublicKeyFromBase58(feeWalletAddr)
	for _, owner := range []solana.PublicKey{payer, merchant, fee} {
		ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		require.NoError(t, err)
		f.prober.existing[ata] = true
	}

	resp, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Slug:    "coffee",
		Account: payerAddr,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Transaction)
	require.Len(t, f.orders.created, 1)
	assert.Equal(t, &tokenID, f.orders.created[0].TokenMintID)
	assert.Equal(t, 6, f.orders.created[0].TokenDecimals)
}

func TestCreateTransaction_InactiveBlink(t *testing.T) {
	f := newFixture(t)
	blink := seedBlink(f, "SOL", enums.ActionTypeTransfer)
	blink.Active = false

	_, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Slug:    "coffee",
		Account: payerAddr,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCreateTransaction_InactiveSubscription(t *testing.T) {
	f := newFixture(t)
	blink := seedBlink(f, "SOL", enums.ActionTypeTransfer)
	blink.Merchant.Subscription.Status = enums.SubscriptionStatusCanceled

	_, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		Slug:    "coffee",
		Account: payerAddr,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestMetadata_CachesAndCountsClicks(t *testing.T) {
	f := newFixture(t)
	seedBlink(f, "SOL", enums.ActionTypeTransfer)

	first, err := f.svc.Metadata(context.Background(), "coffee")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", first.Title)
	require.NotNil(t, first.Links)
	require.Len(t, first.Links.Actions, 1)
	assert.Equal(t, "/api/actions/coffee", first.Links.Actions[0].Href)

	second, err := f.svc.Metadata(context.Background(), "coffee")
	require.NoError(t, err)
	assert.Equal(t, first.Title, second.Title)

	assert.Equal(t, 1, f.repo.slugCalls, "second read served from cache")
	assert.Equal(t, 2, f.clicks.clicks)
}

func TestMetadata_PhysicalFlowCollectsShipping(t *testing.T) {
	f := newFixture(t)
	seedBlink(f, "SOL", enums.ActionTypePhysical)

	metadata, err := f.svc.Metadata(context.Background(), "coffee")
	require.NoError(t, err)
	require.NotNil(t, metadata.Links)
	params := metadata.Links.Actions[0].Parameters
	require.Len(t, params, 4)
	assert.True(t, params[0].Required)
	assert.False(t, params[3].Required, "phone is optional")
}

func TestCreate_EnforcesActiveBlinkLimit(t *testing.T) {
	f := newFixture(t)
	blink := seedBlink(f, "SOL", enums.ActionTypeTransfer)
	f.repo.activeCount = 3

	_, err := f.svc.Create(context.Background(), CreateInput{
		MerchantID: blink.MerchantID,
		Slug:       "another",
		Title:      "Another",
		Amount:     decimal.NewFromInt(1),
		Currency:   "SOL",
		ActionType: "TRANSFER",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestCreate_RejectsBadSlug(t *testing.T) {
	f := newFixture(t)
	blink := seedBlink(f, "SOL", enums.ActionTypeTransfer)

	_, err := f.svc.Create(context.Background(), CreateInput{
		MerchantID: blink.MerchantID,
		Slug:       "Bad Slug!",
		Title:      "X",
		Amount:     decimal.NewFromInt(1),
		Currency:   "SOL",
		ActionType: "TRANSFER",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUpdate_InvalidatesMetadataCache(t *testing.T) {
	f := newFixture(t)
	blink := seedBlink(f, "SOL", enums.ActionTypeTransfer)
	f.cache.data["ac:blink_metadata:coffee"] = `{"merchantId":"x","metadata":{}}`

	title := "New title"
	_, err := f.svc.Update(context.Background(), UpdateInput{
		MerchantID: blink.MerchantID,
		BlinkID:    blink.ID,
		Title:      &title,
	})
	require.NoError(t, err)
	_, cached := f.cache.data["ac:blink_metadata:coffee"]
	assert.False(t, cached, "stale metadata evicted")
}
