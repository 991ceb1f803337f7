package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/actioncore/blink-backend/api/responses"
	"github.com/actioncore/blink-backend/api/validators"
	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/internal/reconcile"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/logger"
)

type reconcileService interface {
	Process(ctx context.Context, input reconcile.Input) (*reconcile.Result, error)
}

type confirmRequest struct {
	Signature   string `json:"signature" validate:"required"`
	OrderIDMemo string `json:"orderIdMemo"`
}

type confirmResponse struct {
	Order        orders.OrderView `json:"order"`
	Transitioned bool             `json:"transitioned"`
}

// PaymentConfirm settles an order against an on-chain signature. The
// endpoint is idempotent: redelivered confirmations return the settled
// order with transitioned=false.
func PaymentConfirm(service reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body confirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := service.Process(r.Context(), reconcile.Input{
			Signature:   body.Signature,
			OrderIDMemo: body.OrderIDMemo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, confirmResponse{
			Order:        orders.NewOrderView(*result.Order),
			Transitioned: result.Transitioned,
		})
	}
}

type orderStatusService interface {
	GetByMemo(ctx context.Context, orderIDMemo string) (*models.Order, error)
}

// OrderStatus lets a paying customer poll their order by memo without
// credentials. Only the projection leaves the API, never the raw row.
func OrderStatus(service orderStatusService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memo := strings.TrimSpace(chi.URLParam(r, "memo"))
		order, err := service.GetByMemo(r.Context(), memo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderView(*order))
	}
}
