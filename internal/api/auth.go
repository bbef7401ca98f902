package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"acorn/internal/auth"
)

// IdentityProvider is the external OAuth provider as seen by the handlers.
type IdentityProvider interface {
	auth.IdentityResolver
	AuthCodeURL(state string) string
}

type AuthHandler struct {
	broker    *auth.TempLoginBroker
	issuer    *auth.AccessTokenIssuer
	registrar *auth.Registrar
	login     *auth.ExternalLogin
	states    *auth.StateSigner
	identity  IdentityProvider
}

func NewAuthHandler(
	broker *auth.TempLoginBroker,
	issuer *auth.AccessTokenIssuer,
	registrar *auth.Registrar,
	login *auth.ExternalLogin,
	states *auth.StateSigner,
	identity IdentityProvider,
) *AuthHandler {
	return &AuthHandler{
		broker:    broker,
		issuer:    issuer,
		registrar: registrar,
		login:     login,
		states:    states,
		identity:  identity,
	}
}

// POST /api/register
type RegisterRequest struct {
	Username            string `json:"username" validate:"required"`
	ExternalID          string `json:"externalId" validate:"required,max=64"`
	ExternalAccessToken string `json:"externalAccessToken" validate:"required,max=512"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	err := h.registrar.Register(r.Context(), req.Username, req.ExternalID, req.ExternalAccessToken)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, auth.ErrInvalidUsername):
		badRequest(w, err.Error())
	case errors.Is(err, auth.ErrIdentityMismatch):
		unauthorized(w, "External identity does not match externalId")
	case errors.Is(err, auth.ErrAccountExists):
		conflict(w, "Username or Discord account already registered")
	default:
		serverError(w, r, "error registering account", err)
	}
}

// GET /api/discord_auth?code=...&state=...
type DiscordAuthResponse struct {
	Register            bool   `json:"register"`
	ExternalUserID      string `json:"externalUserId"`
	Username            string `json:"username,omitempty"`
	ExternalUsername    string `json:"externalUsername,omitempty"`
	ExternalAccessToken string `json:"externalAccessToken,omitempty"`
	TempLoginToken      string `json:"tempLoginToken,omitempty"`
}

func (h *AuthHandler) DiscordAuth(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	if code == "" {
		unauthorized(w, "Missing authorization code")
		return
	}

	result, err := h.login.Complete(r.Context(), code, query.Get("state"))
	if err != nil {
		if auth.IsClientAuthError(err) {
			unauthorized(w, "Discord authorization failed")
			return
		}
		serverError(w, r, "error completing discord login", err)
		return
	}

	writeJSON(w, http.StatusOK, DiscordAuthResponse{
		Register:            result.Register,
		ExternalUserID:      result.ExternalUserID,
		Username:            result.Username,
		ExternalUsername:    result.ExternalUsername,
		ExternalAccessToken: result.ExternalAccessToken,
		TempLoginToken:      result.TempLoginToken,
	})
}

// GET /api/goto_discord_auth?tempLoginToken=...
func (h *AuthHandler) GotoDiscordAuth(w http.ResponseWriter, r *http.Request) {
	tempLoginToken := r.URL.Query().Get("tempLoginToken")
	if tempLoginToken == "" || len(tempLoginToken) > 256 {
		badRequest(w, "tempLoginToken is required")
		return
	}

	state, err := h.states.Sign(tempLoginToken)
	if err != nil {
		serverError(w, r, "error signing oauth state", err)
		return
	}
	http.Redirect(w, r, h.identity.AuthCodeURL(state), http.StatusFound)
}

// POST /api/temp_login
type TempLoginRequest struct {
	TempLoginToken string `json:"tempLoginToken" validate:"required,max=256"`
	Username       string `json:"username" validate:"required,max=32"`
}

func (h *AuthHandler) TempLogin(w http.ResponseWriter, r *http.Request) {
	var req TempLoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	err := h.broker.Create(r.Context(), req.TempLoginToken, req.Username)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, auth.ErrTempTokenExists):
		conflict(w, "Temp login token already exists")
	default:
		serverError(w, r, "error creating temp login token", err)
	}
}

// POST /api/access_token
type AccessTokenRequest struct {
	TempLoginToken string          `json:"tempLoginToken" validate:"required,max=256"`
	DeviceInfo     json.RawMessage `json:"deviceInfo" validate:"omitempty,max=4096"`
}

type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *AuthHandler) AccessToken(w http.ResponseWriter, r *http.Request) {
	var req AccessTokenRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	username, err := h.broker.Resolve(r.Context(), req.TempLoginToken)
	if errors.Is(err, auth.ErrTempTokenNotFound) {
		notFound(w, "Temp login token not found or expired")
		return
	}
	if err != nil {
		serverError(w, r, "error resolving temp login token", err)
		return
	}

	token, err := h.issuer.Issue(r.Context(), username, string(req.DeviceInfo))
	if err != nil {
		// The temp token is already spent; the device has to start a new login.
		slog.Error("temp login token consumed but access token not issued", "username", username, "error", err)
		if errors.Is(err, auth.ErrAccountNotFound) {
			notFound(w, "Account not found")
			return
		}
		serverError(w, r, "error issuing access token", err)
		return
	}

	writeJSON(w, http.StatusOK, AccessTokenResponse{AccessToken: token})
}
