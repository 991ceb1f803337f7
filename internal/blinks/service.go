package blinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/internal/payments"
	"github.com/actioncore/blink-backend/internal/tokens"
	"github.com/actioncore/blink-backend/pkg/config"
	dbpkg "github.com/actioncore/blink-backend/pkg/db"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
	redispkg "github.com/actioncore/blink-backend/pkg/redis"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,62}[a-z0-9])?$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tokenResolver interface {
	Resolve(ctx context.Context, symbol string) (*tokens.Resolved, error)
}

type orderCreator interface {
	CreatePending(ctx context.Context, input orders.CreatePendingInput) (*models.Order, error)
}

type merchantLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
}

type blockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

type actionCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	BlinkMetadataKey(slug string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type clickRecorder interface {
	RecordClick(ctx context.Context, merchantID uuid.UUID, slug string) error
}

// Service serves blink definitions: dashboard CRUD, wallet-facing metadata,
// and unsigned transaction construction.
type Service struct {
	repo      Repository
	tx        txRunner
	merchants merchantLoader
	tokens    tokenResolver
	orders    orderCreator
	resolver  *payments.Resolver
	builder   *payments.Builder
	chain     blockhashSource
	cache     actionCache
	analytics clickRecorder
	logg      *logger.Logger

	feeWallet solana.PublicKey
	payCfg    config.PaymentsConfig
	rateCfg   config.RateLimitConfig
}

// NewService wires the blink service. The platform fee wallet is parsed
// once here; a misconfigured wallet fails startup instead of every request.
func NewService(
	repo Repository,
	tx txRunner,
	merchantRepo merchantLoader,
	tokenSvc tokenResolver,
	orderSvc orderCreator,
	resolver *payments.Resolver,
	builder *payments.Builder,
	chain blockhashSource,
	cache actionCache,
	analytics clickRecorder,
	payCfg config.PaymentsConfig,
	rateCfg config.RateLimitConfig,
	logg *logger.Logger,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("blinks repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if merchantRepo == nil {
		return nil, fmt.Errorf("merchants repository required")
	}
	if tokenSvc == nil {
		return nil, fmt.Errorf("tokens service required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if resolver == nil || builder == nil {
		return nil, fmt.Errorf("payment builder required")
	}
	if chain == nil {
		return nil, fmt.Errorf("chain client required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache client required")
	}
	feeWallet, err := solana.PublicKeyFromBase58(strings.TrimSpace(payCfg.PlatformFeeWallet))
	if err != nil {
		return nil, fmt.Errorf("parse platform fee wallet: %w", err)
	}

	return &Service{
		repo:      repo,
		tx:        tx,
		merchants: merchantRepo,
		tokens:    tokenSvc,
		orders:    orderSvc,
		resolver:  resolver,
		builder:   builder,
		chain:     chain,
		cache:     cache,
		analytics: analytics,
		logg:      logg,
		feeWallet: feeWallet,
		payCfg:    payCfg,
		rateCfg:   rateCfg,
	}, nil
}

// Create registers a new payment link for a merchant, enforcing the
// subscription's active-blink quota.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Blink, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits, and hyphens")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	actionType, err := enums.ParseActionType(input.ActionType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse action type")
	}

	merchant, err := s.merchants.FindByID(ctx, input.MerchantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	if merchant.Subscription == nil || !merchant.Subscription.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription inactive")
	}

	resolved, err := s.tokens.Resolve(ctx, input.Currency)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.CountActiveByMerchant(ctx, input.MerchantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active blinks")
	}
	if active >= int64(merchant.Subscription.ActiveBlinksLimit) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "active blink limit reached").
			WithDetails(map[string]int{"limit": merchant.Subscription.ActiveBlinksLimit})
	}

	blink := &models.Blink{
		MerchantID:       input.MerchantID,
		Slug:             slug,
		Title:            strings.TrimSpace(input.Title),
		Description:      strings.TrimSpace(input.Description),
		Icon:             strings.TrimSpace(input.Icon),
		Label:            strings.TrimSpace(input.Label),
		Amount:           input.Amount,
		Currency:         resolved.Symbol,
		ActionType:       actionType,
		TokenMintID:      resolved.TokenID,
		RequiresShipping: actionType.RequiresShipping(),
		Active:           true,
	}
	if err := s.repo.Create(ctx, blink); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_blinks_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create blink")
	}
	return blink, nil
}

// Update edits a blink's display fields and invalidates its cached metadata.
func (s *Service) Update(ctx context.Context, input UpdateInput) (*models.Blink, error) {
	blink, err := s.repo.FindByID(ctx, input.BlinkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "blink not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load blink")
	}
	if blink.MerchantID != input.MerchantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "blink not found")
	}

	if input.Title != nil {
		blink.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		blink.Description = strings.TrimSpace(*input.Description)
	}
	if input.Icon != nil {
		blink.Icon = strings.TrimSpace(*input.Icon)
	}
	if input.Label != nil {
		blink.Label = strings.TrimSpace(*input.Label)
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
		}
		blink.Amount = *input.Amount
	}
	if input.Active != nil {
		blink.Active = *input.Active
	}

	if err := s.repo.Update(ctx, blink); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update blink")
	}

	if err := s.cache.Del(ctx, s.cache.BlinkMetadataKey(blink.Slug)); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "metadata cache invalidation failed")
	}
	return blink, nil
}

// ListForMerchant returns the merchant's blinks, newest first.
func (s *Service) ListForMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Blink, error) {
	if merchantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id required")
	}
	rows, err := s.repo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list blinks")
	}
	return rows, nil
}

// Metadata renders the wallet-facing action document for a slug, serving
// from cache when fresh. Every hit counts as a click.
func (s *Service) Metadata(ctx context.Context, slug string) (*ActionMetadata, error) {
	normalized := strings.ToLower(strings.TrimSpace(slug))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}

	key := s.cache.BlinkMetadataKey(normalized)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached cachedMetadata
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			s.recordClick(ctx, cached.MerchantID, normalized)
			return &cached.Metadata, nil
		}
	} else if !errors.Is(err, redispkg.Nil) && s.logg != nil {
		s.logg.Warn(ctx, "metadata cache read failed")
	}

	blink, err := s.repo.FindBySlug(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment link not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load blink")
	}

	metadata := buildMetadata(blink)
	payload, err := json.Marshal(cachedMetadata{MerchantID: blink.MerchantID, Metadata: *metadata})
	if err == nil {
		if err := s.cache.Set(ctx, key, string(payload), s.payCfg.MetadataCacheTTL); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "metadata cache write failed")
		}
	}

	s.recordClick(ctx, blink.MerchantID, normalized)
	return metadata, nil
}

type cachedMetadata struct {
	MerchantID uuid.UUID      `json:"merchantId"`
	Metadata   ActionMetadata `json:"metadata"`
}

func (s *Service) recordClick(ctx context.Context, merchantID uuid.UUID, slug string) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.RecordClick(ctx, merchantID, slug); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "click counter failed")
	}
}

func buildMetadata(blink *models.Blink) *ActionMetadata {
	metadata := &ActionMetadata{
		Icon:        blink.Icon,
		Title:       blink.Title,
		Description: blink.Description,
		Label:       blink.Label,
	}
	if !blink.Active {
		metadata.Disabled = true
		return metadata
	}

	action := ActionLink{
		Label: fmt.Sprintf("%s (%s %s)", blink.Label, blink.Amount.String(), blink.Currency),
		Href:  fmt.Sprintf("/api/actions/%s", blink.Slug),
	}
	if blink.RequiresShipping {
		// Wallets substitute collected values into the href template.
		action.Href += "?email={email}&name={name}&address={address}&phone={phone}"
		action.Parameters = []ActionParameter{
			{Name: "email", Label: "Email", Required: true},
			{Name: "name", Label: "Full name", Required: true},
			{Name: "address", Label: "Shipping address", Required: true},
			{Name: "phone", Label: "Phone", Required: false},
		}
	}
	metadata.Links = &struct {
		Actions []ActionLink `json:"actions"`
	}{Actions: []ActionLink{action}}
	return metadata
}
