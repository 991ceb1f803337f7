package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/actioncore/blink-backend/api/responses"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/db/models"
)

const apiKeyHeader = "X-Api-Key"

type apiKeyAuthenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*models.Merchant, error)
}

// APIKeyAuth validates the merchant API key and seeds the request context
// with the merchant id. Keys ride either the X-Api-Key header or a bearer
// Authorization header.
func APIKeyAuth(merchants apiKeyAuthenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if key == "" {
				raw := strings.TrimSpace(r.Header.Get("Authorization"))
				if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
					key = strings.TrimSpace(raw[7:])
				}
			}
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			merchant, err := merchants.Authenticate(r.Context(), key)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithMerchantID(r.Context(), merchant.ID)
			if logg != nil {
				ctx = logg.WithMerchantID(ctx, merchant.ID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
