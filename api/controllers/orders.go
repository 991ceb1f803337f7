package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/actioncore/blink-backend/api/middleware"
	"github.com/actioncore/blink-backend/api/responses"
	"github.com/actioncore/blink-backend/api/validators"
	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/pagination"
)

type orderService interface {
	List(ctx context.Context, params orders.ListParams) (*orders.ListResult, error)
	GetForMerchant(ctx context.Context, merchantID, orderID uuid.UUID) (*models.Order, error)
}

type orderPage struct {
	Items  []orders.OrderView `json:"items"`
	Cursor string             `json:"cursor,omitempty"`
}

// OrderList pages through the merchant's orders, newest first. Supports
// status filtering and cursor pagination.
func OrderList(service orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := orders.ListParams{
			MerchantID: merchantID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status"))
				return
			}
			params.Status = &status
		}

		result, err := service.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page := orderPage{Cursor: result.Cursor, Items: make([]orders.OrderView, 0, len(result.Items))}
		for _, item := range result.Items {
			page.Items = append(page.Items, orders.NewOrderView(item))
		}
		responses.WriteSuccess(w, page)
	}
}

// OrderDetail returns one order after checking ownership.
func OrderDetail(service orderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		orderID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "orderId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}
		order, err := service.GetForMerchant(r.Context(), merchantID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderView(*order))
	}
}
