package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"acorn/internal/auth"
	"acorn/internal/blob"
	"acorn/internal/config"
	"acorn/internal/constants"
	"acorn/internal/db"
	"acorn/internal/mods"
)

// Devices poll /access_token while the browser finishes the OAuth step.
const accessTokenPollsPerMinute = 120

type Server struct {
	router *chi.Mux
}

func NewServer(cfg *config.Config, store db.Store, files blob.Store, identity IdentityProvider) (*Server, error) {
	clientIPs, err := NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("configuring client ip resolver: %w", err)
	}

	states := auth.NewStateSigner(cfg.Auth.StateSecret)
	authHandler := NewAuthHandler(
		auth.NewTempLoginBroker(store),
		auth.NewAccessTokenIssuer(store),
		auth.NewRegistrar(store, identity),
		auth.NewExternalLogin(store, identity, states),
		states,
		identity,
	)
	modHandler := NewModHandler(mods.NewService(store, files))
	checks := map[string]Pinger{"database": store}
	if pinger, ok := files.(Pinger); ok {
		checks["storage"] = pinger
	}
	healthHandler := NewHealthHandler(checks)
	authMiddleware := NewAuthMiddleware(auth.NewAuthenticator(store))

	authLimit := rateLimit(cfg.RateLimit.Auth, time.Minute, clientIPs)
	modLimit := rateLimit(cfg.RateLimit.Mods, time.Minute, clientIPs)
	pollLimit := rateLimit(accessTokenPollsPerMinute, time.Minute, clientIPs)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		notFound(w, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, constants.ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		}

		r.Group(func(r chi.Router) {
			r.Use(maxBodySizeMiddleware(constants.MaxJSONBodyBytes))
			r.With(authLimit).Post("/register", authHandler.Register)
			r.With(authLimit).Post("/temp_login", authHandler.TempLogin)
			r.With(pollLimit).Post("/access_token", authHandler.AccessToken)
			r.With(authLimit).Get("/discord_auth", authHandler.DiscordAuth)
			r.With(authLimit).Get("/goto_discord_auth", authHandler.GotoDiscordAuth)
		})

		r.Group(func(r chi.Router) {
			r.Use(maxBodySizeMiddleware(files.MaxUploadBytes() + constants.MultipartOverheadBytes))
			r.Use(cleanupMultipart)
			r.Use(modLimit)
			r.Use(authMiddleware.RequireAccessToken)
			r.Put("/mod", modHandler.Create)
			r.Patch("/mod", modHandler.Update)
			r.Delete("/mod", modHandler.Delete)
		})

		r.Get("/mod/{id}", modHandler.Get)
		r.Get("/mod/{id}/file", modHandler.Download)
		r.Get("/mods/search", modHandler.Search)
	})

	return &Server{router: r}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
