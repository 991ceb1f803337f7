package blinks

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/pkg/db/models"
)

// Repository exposes persistence helpers for blinks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, blink *models.Blink) error
	FindBySlug(ctx context.Context, slug string) (*models.Blink, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Blink, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Blink, error)
	CountActiveByMerchant(ctx context.Context, merchantID uuid.UUID) (int64, error)
	Update(ctx context.Context, blink *models.Blink) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a blinks repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, blink *models.Blink) error {
	return r.db.WithContext(ctx).Create(blink).Error
}

func (r *repositoryImpl) FindBySlug(ctx context.Context, slug string) (*models.Blink, error) {
	var blink models.Blink
	err := r.db.WithContext(ctx).
		Preload("Merchant").
		Preload("Merchant.Subscription").
		Preload("TokenMint").
		Where("slug = ?", strings.ToLower(slug)).
		First(&blink).Error
	if err != nil {
		return nil, err
	}
	return &blink, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Blink, error) {
	var blink models.Blink
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&blink).Error
	if err != nil {
		return nil, err
	}
	return &blink, nil
}

func (r *repositoryImpl) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Blink, error) {
	var rows []models.Blink
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) CountActiveByMerchant(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Blink{}).
		Where("merchant_id = ? AND active = ?", merchantID, true).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) Update(ctx context.Context, blink *models.Blink) error {
	return r.db.WithContext(ctx).Save(blink).Error
}

func (r *repositoryImpl) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Blink{}).
		Where("id = ?", id).
		UpdateColumn("active", active).Error
}
