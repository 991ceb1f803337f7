package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actioncore/blink-backend/pkg/db/models"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

type stubAuthenticator struct {
	byKey map[string]*models.Merchant
}

func (s *stubAuthenticator) Authenticate(_ context.Context, apiKey string) (*models.Merchant, error) {
	if merchant, ok := s.byKey[apiKey]; ok {
		return merchant, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key")
}

func TestAPIKeyAuth_MissingKey(t *testing.T) {
	handler := APIKeyAuth(&stubAuthenticator{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/blinks", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	handler := APIKeyAuth(&stubAuthenticator{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blinks", nil)
	req.Header.Set("X-Api-Key", "ak_bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_SeedsMerchantContext(t *testing.T) {
	merchant := &models.Merchant{ID: uuid.New()}
	auth := &stubAuthenticator{byKey: map[string]*models.Merchant{"ak_good": merchant}}

	var seen uuid.UUID
	handler := APIKeyAuth(auth, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := MerchantIDFromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blinks", nil)
	req.Header.Set("X-Api-Key", "ak_good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, merchant.ID, seen)
}

func TestAPIKeyAuth_AcceptsBearerHeader(t *testing.T) {
	merchant := &models.Merchant{ID: uuid.New()}
	auth := &stubAuthenticator{byKey: map[string]*models.Merchant{"ak_good": merchant}}

	handler := APIKeyAuth(auth, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blinks", nil)
	req.Header.Set("Authorization", "Bearer ak_good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
