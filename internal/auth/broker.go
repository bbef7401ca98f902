package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acorn/internal/db"
)

// TempLoginTTL is how long a temp login token stays resolvable.
const TempLoginTTL = 5 * time.Minute

type TempLoginStore interface {
	CreateTempLoginToken(ctx context.Context, token, username string, expiresAt time.Time) error
	ConsumeTempLoginToken(ctx context.Context, token string, now time.Time) (string, error)
	DeleteExpiredTempLoginTokens(ctx context.Context, now time.Time) (int64, error)
}

// TempLoginBroker hands out single-use tokens that link a device-initiated
// login to a browser that completes the external OAuth step.
type TempLoginBroker struct {
	store TempLoginStore
	ttl   time.Duration
	now   func() time.Time
}

func NewTempLoginBroker(store TempLoginStore) *TempLoginBroker {
	return &TempLoginBroker{
		store: store,
		ttl:   TempLoginTTL,
		now:   time.Now,
	}
}

// Create registers token for username. A token value that is already live
// yields ErrTempTokenExists.
func (b *TempLoginBroker) Create(ctx context.Context, token, username string) error {
	expiresAt := b.now().Add(b.ttl)
	if err := b.store.CreateTempLoginToken(ctx, token, username, expiresAt); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return ErrTempTokenExists
		}
		return fmt.Errorf("creating temp login token: %w", err)
	}
	return nil
}

// Resolve consumes token and returns the username it was created for.
// Consumed and expired tokens both yield ErrTempTokenNotFound.
func (b *TempLoginBroker) Resolve(ctx context.Context, token string) (string, error) {
	username, err := b.store.ConsumeTempLoginToken(ctx, token, b.now())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", ErrTempTokenNotFound
		}
		return "", fmt.Errorf("resolving temp login token: %w", err)
	}
	return username, nil
}

// SweepExpired physically removes tokens whose TTL has elapsed.
func (b *TempLoginBroker) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := b.store.DeleteExpiredTempLoginTokens(ctx, b.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping temp login tokens: %w", err)
	}
	return deleted, nil
}
