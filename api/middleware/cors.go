package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/sparrowretail/shelfline-backend/pkg/config"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local dev
	"https://app.shelfline.io",
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS(cfg config.AppConfig) func(http.Handler) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
