package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"acorn/internal/db"
	"acorn/internal/models"
)

// AccessTokenBytes is the amount of randomness behind each access token (256 bits).
const AccessTokenBytes = 32

type AccessTokenStore interface {
	CreateAccessToken(ctx context.Context, token *models.AccessToken) error
}

type AccessTokenIssuer struct {
	store  AccessTokenStore
	random io.Reader
	now    func() time.Time
}

func NewAccessTokenIssuer(store AccessTokenStore) *AccessTokenIssuer {
	return &AccessTokenIssuer{
		store:  store,
		random: rand.Reader,
		now:    time.Now,
	}
}

// Issue mints a bearer token for username and persists its hash. The raw
// token is only ever returned here.
func (i *AccessTokenIssuer) Issue(ctx context.Context, username, deviceInfo string) (string, error) {
	token, err := generateSecureToken(i.random, AccessTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating access token: %w", err)
	}

	err = i.store.CreateAccessToken(ctx, &models.AccessToken{
		TokenHash:  HashAccessToken(token),
		Username:   username,
		DeviceInfo: deviceInfo,
		CreatedAt:  i.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("storing access token: %w", err)
	}
	return token, nil
}

func HashAccessToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func generateSecureToken(r io.Reader, length int) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
