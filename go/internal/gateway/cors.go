package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware lets control and display surfaces served from other
// origins call the API. An empty list allows every origin.
func CORSMiddleware(allowedOrigins []string, next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message", "Content-Disposition"},
		MaxAge:         86400,
	}).Handler(next)
}
