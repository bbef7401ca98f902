package api

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/rs/cors"
)

// corsMiddleware allows the configured origins plus loopback origins used
// by the desktop client during development. "*" allows any origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(allowedOrigins, "*")

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return allowAll || slices.Contains(allowedOrigins, origin) || isLoopbackOrigin(origin)
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Location", "Retry-After"},
		MaxAge:         600,
	})
	return c.Handler
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
