package merchants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/pkg/db/models"
)

// Repository exposes persistence helpers for merchants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, merchant *models.Merchant) error
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Merchant, error)
	FindByWallet(ctx context.Context, walletAddress string) (*models.Merchant, error)
	UpdatePayoutAddress(ctx context.Context, id uuid.UUID, payoutAddress string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a merchants repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, merchant *models.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}

func (r *repositoryImpl) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).Preload("Subscription").Where("id = ?", id).First(&merchant).Error
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *repositoryImpl) FindByAPIKey(ctx context.Context, apiKey string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).Preload("Subscription").Where("api_key = ?", apiKey).First(&merchant).Error
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *repositoryImpl) FindByWallet(ctx context.Context, walletAddress string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).Preload("Subscription").Where("wallet_address = ?", walletAddress).First(&merchant).Error
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *repositoryImpl) UpdatePayoutAddress(ctx context.Context, id uuid.UUID, payoutAddress string) error {
	return r.db.WithContext(ctx).
		Model(&models.Merchant{}).
		Where("id = ?", id).
		UpdateColumn("payout_address", payoutAddress).Error
}
