package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actioncore/blink-backend/api/middleware"
	"github.com/actioncore/blink-backend/api/responses"
	"github.com/actioncore/blink-backend/api/validators"
	"github.com/actioncore/blink-backend/internal/blinks"
	"github.com/actioncore/blink-backend/pkg/db/models"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
)

type blinkService interface {
	Create(ctx context.Context, input blinks.CreateInput) (*models.Blink, error)
	Update(ctx context.Context, input blinks.UpdateInput) (*models.Blink, error)
	ListForMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Blink, error)
}

type createBlinkRequest struct {
	Slug        string          `json:"slug" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Label       string          `json:"label"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    string          `json:"currency" validate:"required"`
	ActionType  string          `json:"actionType" validate:"required"`
}

type updateBlinkRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Icon        *string          `json:"icon"`
	Label       *string          `json:"label"`
	Amount      *decimal.Decimal `json:"amount"`
	Active      *bool            `json:"active"`
}

// BlinkCreate registers a new payment link for the authenticated merchant.
func BlinkCreate(service blinkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		var body createBlinkRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		blink, err := service.Create(r.Context(), blinks.CreateInput{
			MerchantID:  merchantID,
			Slug:        body.Slug,
			Title:       body.Title,
			Description: body.Description,
			Icon:        body.Icon,
			Label:       body.Label,
			Amount:      body.Amount,
			Currency:    body.Currency,
			ActionType:  body.ActionType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, blinks.NewView(*blink))
	}
}

// BlinkUpdate edits a blink owned by the authenticated merchant.
func BlinkUpdate(service blinkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		blinkID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "blinkId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid blink id"))
			return
		}
		var body updateBlinkRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		blink, err := service.Update(r.Context(), blinks.UpdateInput{
			MerchantID:  merchantID,
			BlinkID:     blinkID,
			Title:       body.Title,
			Description: body.Description,
			Icon:        body.Icon,
			Label:       body.Label,
			Amount:      body.Amount,
			Active:      body.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, blinks.NewView(*blink))
	}
}

// BlinkList returns every blink the merchant owns.
func BlinkList(service blinkService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		rows, err := service.ListForMerchant(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]blinks.View, 0, len(rows))
		for _, row := range rows {
			views = append(views, blinks.NewView(row))
		}
		responses.WriteSuccess(w, views)
	}
}
