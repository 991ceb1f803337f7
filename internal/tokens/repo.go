package tokens

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/pkg/db/models"
)

// Repository exposes lookups over the supported token registry.
type Repository interface {
	FindBySymbol(ctx context.Context, symbol string) (*models.Token, error)
	FindByMint(ctx context.Context, mintAddress string) (*models.Token, error)
	List(ctx context.Context) ([]models.Token, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a token repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) FindBySymbol(ctx context.Context, symbol string) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).Where("symbol = ?", strings.ToUpper(symbol)).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repositoryImpl) FindByMint(ctx context.Context, mintAddress string) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).Where("mint_address = ?", mintAddress).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repositoryImpl) List(ctx context.Context) ([]models.Token, error) {
	var rows []models.Token
	err := r.db.WithContext(ctx).Order("symbol ASC").Find(&rows).Error
	return rows, err
}
