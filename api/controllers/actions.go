package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/actioncore/blink-backend/api/responses"
	"github.com/actioncore/blink-backend/api/validators"
	"github.com/actioncore/blink-backend/internal/blinks"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
)

type actionService interface {
	Metadata(ctx context.Context, slug string) (*blinks.ActionMetadata, error)
	CreateTransaction(ctx context.Context, input blinks.CreateTransactionInput) (*blinks.TransactionResponse, error)
}

// ActionsJSON maps site paths to action endpoints so wallets can discover
// the API from any URL on the host.
func ActionsJSON() http.HandlerFunc {
	rules := map[string]any{
		"rules": []map[string]string{
			{"pathPattern": "/pay/**", "apiPath": "/api/actions/**"},
			{"pathPattern": "/api/actions/**", "apiPath": "/api/actions/**"},
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteRaw(w, http.StatusOK, rules)
	}
}

// ActionMetadata serves the GET half of the action: the schema wallets
// render before asking the customer to sign.
func ActionMetadata(service actionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		metadata, err := service.Metadata(r.Context(), slug)
		if err != nil {
			writeActionError(r.Context(), logg, w, err)
			return
		}
		responses.WriteRaw(w, http.StatusOK, metadata)
	}
}

type actionTransactionRequest struct {
	Account string `json:"account" validate:"required"`
}

// ActionTransaction serves the POST half: it builds the unsigned fee-split
// transaction for the posting wallet. Shipping fields arrive as query
// parameters via the href template in the metadata.
func ActionTransaction(service actionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body actionTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			writeActionError(r.Context(), logg, w, err)
			return
		}

		result, err := service.CreateTransaction(r.Context(), blinks.CreateTransactionInput{
			Slug:     chi.URLParam(r, "slug"),
			Account:  body.Account,
			Shipping: shippingFromQuery(r),
		})
		if err != nil {
			writeActionError(r.Context(), logg, w, err)
			return
		}
		responses.WriteRaw(w, http.StatusOK, result)
	}
}

func shippingFromQuery(r *http.Request) *blinks.ShippingInput {
	q := r.URL.Query()
	email := strings.TrimSpace(q.Get("email"))
	name := strings.TrimSpace(q.Get("name"))
	address := strings.TrimSpace(q.Get("address"))
	phone := strings.TrimSpace(q.Get("phone"))
	if email == "" && name == "" && address == "" && phone == "" {
		return nil
	}
	shipping := &blinks.ShippingInput{
		Email:   email,
		Name:    name,
		Address: address,
	}
	if phone != "" {
		shipping.Phone = &phone
	}
	return shipping
}

// writeActionError emits the flat {"message": ...} error body the Actions
// spec expects instead of the dashboard envelope.
func writeActionError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if typed.Code() != pkgerrors.CodeInternal && typed.Code() != pkgerrors.CodeDependency {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	if logg != nil {
		logg.Error(logg.WithField(ctx, "error_code", string(typed.Code())), "action.error", err)
	}
	responses.WriteRaw(w, meta.HTTPStatus, map[string]string{"message": msg})
}
