package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acorn/internal/db"
	"acorn/internal/models"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error)
}

type Registrar struct {
	accounts AccountStore
	identity IdentityResolver
	now      func() time.Time
}

func NewRegistrar(accounts AccountStore, identity IdentityResolver) *Registrar {
	return &Registrar{
		accounts: accounts,
		identity: identity,
		now:      time.Now,
	}
}

// Register creates an account bound to the external identity that owns
// externalAccessToken. The caller's claimed id must match what the provider
// reports for that token.
func (r *Registrar) Register(ctx context.Context, username, externalID, externalAccessToken string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}

	identity, err := r.identity.Resolve(ctx, externalAccessToken)
	if err != nil {
		return fmt.Errorf("resolving external identity: %w", err)
	}
	if identity.ID != externalID {
		return ErrIdentityMismatch
	}

	err = r.accounts.CreateAccount(ctx, &models.Account{
		Username:   username,
		ExternalID: identity.ID,
		CreatedAt:  r.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return ErrAccountExists
		}
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}
