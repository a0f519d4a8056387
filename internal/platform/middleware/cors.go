package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"feedesk/pkg/platform/middleware/request"
)

// CORS allows the receipt form to be posted from the configured origins. A "*" entry
// allows any origin; credentials are never allowed.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", request.HeaderRequestID},
		ExposedHeaders:   []string{request.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
