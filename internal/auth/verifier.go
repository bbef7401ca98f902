package auth

import (
	"context"
	"fmt"
)

type AccessTokenChecker interface {
	AccessTokenExists(ctx context.Context, username, tokenHash string) (bool, error)
}

// Authenticator checks username/access token pairs presented on protected calls.
type Authenticator struct {
	store AccessTokenChecker
}

func NewAuthenticator(store AccessTokenChecker) *Authenticator {
	return &Authenticator{store: store}
}

// Verify returns ErrUnauthenticated for an unknown username and for a wrong
// token alike.
func (a *Authenticator) Verify(ctx context.Context, username, token string) error {
	if username == "" || token == "" {
		return ErrUnauthenticated
	}

	ok, err := a.store.AccessTokenExists(ctx, username, HashAccessToken(token))
	if err != nil {
		return fmt.Errorf("checking access token: %w", err)
	}
	if !ok {
		return ErrUnauthenticated
	}
	return nil
}
