package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// ActionCORS returns the open CORS policy required by the Solana Actions
// spec: wallets and dial.to-style clients fetch action metadata from
// arbitrary origins, so the public routes must answer any origin.
func ActionCORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Encoding", "Accept-Encoding"},
		MaxAge:         7200,
	}).Handler
}

// DashboardCORS covers the authenticated merchant API.
func DashboardCORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
