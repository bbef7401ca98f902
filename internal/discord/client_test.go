package discord

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"acorn/internal/auth"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "https://example.test/callback",
		APIBaseURL:   srv.URL,
		HTTPClient:   srv.Client(),
	})
}

func TestExchange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("code") {
		case "good":
			w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":604800}`))
		case "used":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
		case "broken":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_request"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"temporarily_unavailable"}`))
		}
	})

	tokens, err := client.Exchange(context.Background(), "good")
	if err != nil {
		t.Fatalf("Exchange(good) error = %v", err)
	}
	if tokens.AccessToken != "at" || tokens.RefreshToken != "rt" {
		t.Fatalf("Exchange(good) = %+v, want at/rt", tokens)
	}

	if _, err := client.Exchange(context.Background(), "used"); !errors.Is(err, auth.ErrInvalidGrant) {
		t.Fatalf("Exchange(used) error = %v, want ErrInvalidGrant", err)
	}
	if _, err := client.Exchange(context.Background(), "broken"); !errors.Is(err, auth.ErrInvalidCode) {
		t.Fatalf("Exchange(broken) error = %v, want ErrInvalidCode", err)
	}
	if _, err := client.Exchange(context.Background(), " "); !errors.Is(err, auth.ErrInvalidCode) {
		t.Fatalf("Exchange(blank) error = %v, want ErrInvalidCode", err)
	}

	_, err = client.Exchange(context.Background(), "down")
	var upstream *auth.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Exchange(down) error = %v, want UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("UpstreamError.StatusCode = %d, want %d", upstream.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestResolve(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/@me" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"id":"80351110224678912","username":"nelly","global_name":"Nelly"}`))
		case "Bearer legacy":
			w.Write([]byte(`{"id":"42","username":"oldtimer","global_name":null}`))
		case "Bearer noid":
			w.Write([]byte(`{"username":"ghost"}`))
		case "Bearer garbage":
			w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"401: Unauthorized","code":0}`))
		}
	})

	tests := []struct {
		token       string
		wantID      string
		wantName    string
		wantErr     error
		wantUpstream int
	}{
		{token: "good", wantID: "80351110224678912", wantName: "Nelly"},
		{token: "legacy", wantID: "42", wantName: "oldtimer"},
		{token: "noid", wantErr: auth.ErrMalformedIdentity},
		{token: "garbage", wantErr: auth.ErrMalformedIdentity},
		{token: "revoked", wantUpstream: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			identity, err := client.Resolve(context.Background(), tt.token)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
			case tt.wantUpstream != 0:
				var upstream *auth.UpstreamError
				if !errors.As(err, &upstream) || upstream.StatusCode != tt.wantUpstream {
					t.Fatalf("Resolve() error = %v, want upstream %d", err, tt.wantUpstream)
				}
			default:
				if err != nil {
					t.Fatalf("Resolve() error = %v", err)
				}
				if identity.ID != tt.wantID || identity.DisplayName != tt.wantName {
					t.Fatalf("Resolve() = %+v, want %s/%s", identity, tt.wantID, tt.wantName)
				}
			}
		})
	}
}

func TestAuthCodeURL(t *testing.T) {
	client := NewClient(Config{ClientID: "client", RedirectURI: "https://example.test/callback"})

	raw := client.AuthCodeURL("signed-state")
	if !strings.HasPrefix(raw, DefaultAPIBaseURL+"/oauth2/authorize?") {
		t.Fatalf("AuthCodeURL() = %q, want discord authorize endpoint", raw)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	q := parsed.Query()
	if q.Get("state") != "signed-state" || q.Get("scope") != "identify" || q.Get("client_id") != "client" {
		t.Fatalf("AuthCodeURL() query = %v", q)
	}
	if q.Get("response_type") != "code" {
		t.Fatalf("response_type = %q, want code", q.Get("response_type"))
	}
}
