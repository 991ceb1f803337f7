package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/actioncore/blink-backend/api/middleware"
	"github.com/actioncore/blink-backend/api/responses"
	"github.com/actioncore/blink-backend/api/validators"
	"github.com/actioncore/blink-backend/internal/analytics"
	"github.com/actioncore/blink-backend/internal/merchants"
	"github.com/actioncore/blink-backend/pkg/db/models"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
)

type merchantService interface {
	Register(ctx context.Context, input merchants.RegisterInput) (*models.Merchant, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	SetPayoutAddress(ctx context.Context, id uuid.UUID, payoutAddress string) error
}

type statsService interface {
	Stats(ctx context.Context, merchantID uuid.UUID, currency string) (*analytics.MerchantStats, error)
}

type registerRequest struct {
	WalletAddress string  `json:"walletAddress" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	BusinessName  *string `json:"businessName"`
}

type merchantView struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	PayoutAddress *string   `json:"payoutAddress,omitempty"`
	Email         string    `json:"email"`
	BusinessName  *string   `json:"businessName,omitempty"`
	Tier          string    `json:"tier,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type registeredMerchantView struct {
	merchantView
	// APIKey is returned exactly once, at registration.
	APIKey string `json:"apiKey"`
}

func newMerchantView(merchant *models.Merchant) merchantView {
	view := merchantView{
		ID:            merchant.ID,
		WalletAddress: merchant.WalletAddress,
		PayoutAddress: merchant.PayoutAddress,
		Email:         merchant.Email,
		BusinessName:  merchant.BusinessName,
		CreatedAt:     merchant.CreatedAt,
	}
	if merchant.Subscription != nil {
		view.Tier = string(merchant.Subscription.Tier)
	}
	return view
}

// MerchantRegister creates a merchant account and returns its API key.
func MerchantRegister(service merchantService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		merchant, err := service.Register(r.Context(), merchants.RegisterInput{
			WalletAddress: body.WalletAddress,
			Email:         body.Email,
			BusinessName:  body.BusinessName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, registeredMerchantView{
			merchantView: newMerchantView(merchant),
			APIKey:       merchant.APIKey,
		})
	}
}

// MerchantMe returns the authenticated merchant's profile.
func MerchantMe(service merchantService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		merchant, err := service.Get(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMerchantView(merchant))
	}
}

type payoutRequest struct {
	PayoutAddress string `json:"payoutAddress" validate:"required"`
}

// MerchantSetPayout updates where the 99% leg settles.
func MerchantSetPayout(service merchantService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		var body payoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := service.SetPayoutAddress(r.Context(), merchantID, body.PayoutAddress); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"payoutAddress": body.PayoutAddress})
	}
}

// MerchantStats returns click, payment, and volume counters.
func MerchantStats(service statsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		stats, err := service.Stats(r.Context(), merchantID, r.URL.Query().Get("currency"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
