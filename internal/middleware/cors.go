package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows credentialed requests so the refresh-token cookie can
// travel cross-origin. Credentials require concrete origins; a
// wildcard disables them.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
		}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		MaxAge:           3600,
		AllowCredentials: allowCredentials,
	})

	return handler.Handler
}
