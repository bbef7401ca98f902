package db

import (
	"context"

	"acorn/internal/models"
)

// CreateAccount inserts the account in one statement. Both the username
// primary key and the external_id unique index are enforced by that insert,
// so concurrent registrations for either key yield exactly one success.
func (db *DB) CreateAccount(ctx context.Context, account *models.Account) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (username, external_id, created_at) VALUES (?, ?, ?)`,
		account.Username, account.ExternalID, account.CreatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return storeError("creating account", err)
	}
	return nil
}

func (db *DB) GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	return db.findAccount(ctx, `SELECT username, external_id, created_at FROM accounts WHERE external_id = ?`, externalID)
}

func (db *DB) findAccount(ctx context.Context, query string, args ...any) (*models.Account, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var account models.Account
	if err := db.GetContext(ctx, &account, query, args...); err != nil {
		return nil, notFoundOr("querying account", err)
	}
	return &account, nil
}
