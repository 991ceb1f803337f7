package merchants

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

type stubMerchantRepo struct {
	createErr     error
	created       *models.Merchant
	subscriptions []*models.Subscription
	byAPIKey      map[string]*models.Merchant
	byID          map[uuid.UUID]*models.Merchant
	payoutUpdates map[uuid.UUID]string
}

func (s *stubMerchantRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubMerchantRepo) Create(_ context.Context, merchant *models.Merchant) error {
	if s.createErr != nil {
		return s.createErr
	}
	merchant.ID = uuid.New()
	s.created = merchant
	return nil
}

func (s *stubMerchantRepo) CreateSubscription(_ context.Context, subscription *models.Subscription) error {
	s.subscriptions = append(s.subscriptions, subscription)
	return nil
}

func (s *stubMerchantRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Merchant, error) {
	if merchant, ok := s.byID[id]; ok {
		return merchant, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubMerchantRepo) FindByAPIKey(_ context.Context, apiKey string) (*models.Merchant, error) {
	if merchant, ok := s.byAPIKey[apiKey]; ok {
		return merchant, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubMerchantRepo) FindByWallet(_ context.Context, wallet string) (*models.Merchant, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubMerchantRepo) UpdatePayoutAddress(_ context.Context, id uuid.UUID, payoutAddress string) error {
	if s.payoutUpdates == nil {
		s.payoutUpdates = make(map[uuid.UUID]string)
	}
	s.payoutUpdates[id] = payoutAddress
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

const testWallet = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func TestRegister_CreatesMerchantWithFreeTier(t *testing.T) {
	repo := &stubMerchantRepo{}
	svc, err := NewService(repo, passthroughTx{})
	require.NoError(t, err)

	merchant, err := svc.Register(context.Background(), RegisterInput{
		WalletAddress: testWallet,
		Email:         "Owner@Example.COM",
	})
	require.NoError(t, err)

	assert.Equal(t, "owner@example.com", merchant.Email)
	assert.True(t, strings.HasPrefix(merchant.APIKey, "ak_"))
	assert.Len(t, merchant.APIKey, len("ak_")+48)

	require.Len(t, repo.subscriptions, 1)
	sub := repo.subscriptions[0]
	assert.Equal(t, merchant.ID, sub.MerchantID)
	assert.Equal(t, enums.SubscriptionTierFree, sub.Tier)
	assert.Equal(t, 3, sub.ActiveBlinksLimit)
}

func TestRegister_RejectsBadWallet(t *testing.T) {
	svc, err := NewService(&stubMerchantRepo{}, passthroughTx{})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		WalletAddress: "not-base58!",
		Email:         "a@b.c",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestRegister_DuplicateWalletConflict(t *testing.T) {
	repo := &stubMerchantRepo{
		createErr: errors.New(`duplicate key value violates unique constraint "ux_merchants_wallet_address"`),
	}
	svc, err := NewService(repo, passthroughTx{})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		WalletAddress: testWallet,
		Email:         "a@b.c",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestAuthenticate(t *testing.T) {
	merchant := &models.Merchant{ID: uuid.New(), APIKey: "ak_known"}
	repo := &stubMerchantRepo{byAPIKey: map[string]*models.Merchant{"ak_known": merchant}}
	svc, err := NewService(repo, passthroughTx{})
	require.NoError(t, err)

	got, err := svc.Authenticate(context.Background(), "ak_known")
	require.NoError(t, err)
	assert.Equal(t, merchant.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "ak_wrong")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	_, err = svc.Authenticate(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestSetPayoutAddress(t *testing.T) {
	repo := &stubMerchantRepo{}
	svc, err := NewService(repo, passthroughTx{})
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, svc.SetPayoutAddress(context.Background(), id, testWallet))
	assert.Equal(t, testWallet, repo.payoutUpdates[id])

	err = svc.SetPayoutAddress(context.Background(), id, "garbage")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
