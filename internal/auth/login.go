package auth

import (
	"context"
	"errors"
	"fmt"

	"acorn/internal/db"
)

// LoginResult describes what the browser should do after the provider redirect.
// Register is true when no account is bound to the external identity yet.
type LoginResult struct {
	Register            bool
	Username            string
	ExternalUserID      string
	ExternalUsername    string
	ExternalAccessToken string
	TempLoginToken      string
}

// ExternalLogin completes the browser side of the OAuth handshake.
type ExternalLogin struct {
	accounts AccountStore
	identity IdentityResolver
	states   *StateSigner
}

func NewExternalLogin(accounts AccountStore, identity IdentityResolver, states *StateSigner) *ExternalLogin {
	return &ExternalLogin{
		accounts: accounts,
		identity: identity,
		states:   states,
	}
}

// Complete exchanges code for provider tokens and looks up the account bound
// to the resulting identity. A non-empty state must verify; its temp login
// token is echoed in the result.
func (l *ExternalLogin) Complete(ctx context.Context, code, state string) (*LoginResult, error) {
	result := &LoginResult{}
	if state != "" {
		tempLoginToken, err := l.states.Verify(state)
		if err != nil {
			return nil, err
		}
		result.TempLoginToken = tempLoginToken
	}

	tokens, err := l.identity.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	identity, err := l.identity.Resolve(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolving external identity: %w", err)
	}
	result.ExternalUserID = identity.ID

	account, err := l.accounts.GetAccountByExternalID(ctx, identity.ID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		result.Register = true
		result.ExternalUsername = identity.DisplayName
		result.ExternalAccessToken = tokens.AccessToken
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	result.Username = account.Username
	return result, nil
}
