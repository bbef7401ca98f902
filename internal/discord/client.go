// Package discord resolves Discord OAuth codes and access tokens into identities.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"acorn/internal/auth"
)

const DefaultAPIBaseURL = "https://discord.com/api/v10"

// Cap on the /users/@me body we are willing to decode.
const maxProfileBytes = 1 << 16

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBaseURL   string
	HTTPClient   *http.Client
}

type Client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

var _ auth.IdentityResolver = (*Client)(nil)

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiBaseURL: base,
		httpClient: httpClient,
	}
}

// AuthCodeURL is where the browser is sent to approve the login.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *Client) Exchange(ctx context.Context, code string) (auth.ExternalTokens, error) {
	if strings.TrimSpace(code) == "" {
		return auth.ExternalTokens{}, auth.ErrInvalidCode
	}

	token, err := c.oauth.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return auth.ExternalTokens{}, mapExchangeError(err)
	}
	return auth.ExternalTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

func mapExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return &auth.UpstreamError{Err: err}
	}

	switch retrieveErr.ErrorCode {
	case "invalid_grant":
		return auth.ErrInvalidGrant
	case "invalid_request":
		return auth.ErrInvalidCode
	}

	status := 0
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}
	return &auth.UpstreamError{StatusCode: status, Err: err}
}

type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

func (c *Client) Resolve(ctx context.Context, accessToken string) (auth.ExternalIdentity, error) {
	client := oauth2.NewClient(c.withHTTPClient(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/users/@me", nil)
	if err != nil {
		return auth.ExternalIdentity{}, fmt.Errorf("building user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return auth.ExternalIdentity{}, &auth.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return auth.ExternalIdentity{}, &auth.UpstreamError{StatusCode: resp.StatusCode}
	}

	var user userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&user); err != nil {
		return auth.ExternalIdentity{}, fmt.Errorf("%w: %v", auth.ErrMalformedIdentity, err)
	}
	if user.ID == "" {
		return auth.ExternalIdentity{}, fmt.Errorf("%w: missing user id", auth.ErrMalformedIdentity)
	}

	displayName := user.GlobalName
	if displayName == "" {
		displayName = user.Username
	}
	return auth.ExternalIdentity{ID: user.ID, DisplayName: displayName}, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
