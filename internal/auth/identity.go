package auth

import "context"

// ExternalTokens is the token pair returned by the identity provider after a code exchange.
type ExternalTokens struct {
	AccessToken  string
	RefreshToken string
}

// ExternalIdentity is the stable identity behind an external access token.
type ExternalIdentity struct {
	ID          string
	DisplayName string
}

// IdentityResolver exchanges OAuth codes and resolves provider access tokens.
//
// Exchange returns ErrInvalidCode or ErrInvalidGrant for caller mistakes and
// *UpstreamError for anything the provider rejected on its own. Resolve
// returns *UpstreamError or ErrMalformedIdentity.
type IdentityResolver interface {
	Exchange(ctx context.Context, code string) (ExternalTokens, error)
	Resolve(ctx context.Context, accessToken string) (ExternalIdentity, error)
}
