package merchants

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/actioncore/blink-backend/pkg/db"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

const (
	apiKeyPrefix = "ak_"
	apiKeyBytes  = 24

	freeTierBlinksLimit = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterInput captures a new merchant signup.
type RegisterInput struct {
	WalletAddress string
	Email         string
	BusinessName  *string
}

// Service defines merchant account operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Merchant, error)
	Authenticate(ctx context.Context, apiKey string) (*models.Merchant, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	SetPayoutAddress(ctx context.Context, id uuid.UUID, payoutAddress string) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires merchant dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("merchants repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Register creates a merchant with a fresh API key and a FREE subscription.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Merchant, error) {
	wallet := strings.TrimSpace(input.WalletAddress)
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse wallet address")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	apiKey, err := newAPIKey()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate api key")
	}

	merchant := &models.Merchant{
		WalletAddress: wallet,
		Email:         email,
		BusinessName:  input.BusinessName,
		APIKey:        apiKey,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, merchant); err != nil {
			return err
		}
		return repo.CreateSubscription(ctx, &models.Subscription{
			MerchantID:        merchant.ID,
			Tier:              enums.SubscriptionTierFree,
			Status:            enums.SubscriptionStatusActive,
			ActiveBlinksLimit: freeTierBlinksLimit,
		})
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet or email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create merchant")
	}
	return merchant, nil
}

// Authenticate resolves an API key to its merchant.
func (s *service) Authenticate(ctx context.Context, apiKey string) (*models.Merchant, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "api key required")
	}
	merchant, err := s.repo.FindByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up api key")
	}
	return merchant, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	merchant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	return merchant, nil
}

func (s *service) SetPayoutAddress(ctx context.Context, id uuid.UUID, payoutAddress string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	address := strings.TrimSpace(payoutAddress)
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse payout address")
	}
	if err := s.repo.UpdatePayoutAddress(ctx, id, address); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout address")
	}
	return nil
}

func newAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
