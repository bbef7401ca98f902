package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"acorn/internal/auth"
)

type contextKey string

const usernameKey contextKey = "username"

// Message shared by every credential failure so responses never reveal
// whether the username exists.
const invalidCredentialsMessage = "Invalid username or access token"

type credentialsForm struct {
	Username    string `form:"username"`
	AccessToken string `form:"accessToken"`
}

type AuthMiddleware struct {
	authenticator *auth.Authenticator
}

func NewAuthMiddleware(authenticator *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// RequireAccessToken authenticates multipart requests carrying username and
// accessToken fields. The parsed form stays on the request for the handler.
func (m *AuthMiddleware) RequireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds credentialsForm
		if err := decodeMultipart(r, &creds); err != nil {
			writeDecodeError(w, err)
			return
		}

		err := m.authenticator.Verify(r.Context(), creds.Username, creds.AccessToken)
		if errors.Is(err, auth.ErrUnauthenticated) {
			unauthorized(w, invalidCredentialsMessage)
			return
		}
		if err != nil {
			serverError(w, r, "error verifying access token", err)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, creds.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUsername(r *http.Request) string {
	if v := r.Context().Value(usernameKey); v != nil {
		if username, ok := v.(string); ok {
			return username
		}
	}
	return ""
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// cleanupMultipart removes temp files the multipart parser spilled to disk.
func cleanupMultipart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if r.MultipartForm != nil {
				if err := r.MultipartForm.RemoveAll(); err != nil {
					slog.Warn("error removing multipart temp files", "error", err)
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}
