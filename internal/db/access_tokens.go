package db

import (
	"context"

	"acorn/internal/models"
)

func (db *DB) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO access_tokens (token, username, device_info, created_at) VALUES (?, ?, ?, ?)`,
		token.TokenHash, token.Username, token.DeviceInfo, token.CreatedAt.UTC(),
	)
	if err != nil {
		if IsForeignKeyError(err) {
			return ErrNotFound
		}
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return storeError("creating access token", err)
	}
	return nil
}

func (db *DB) AccessTokenExists(ctx context.Context, username, tokenHash string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM access_tokens WHERE username = ? AND token = ?)`,
		username, tokenHash,
	)
	if err != nil {
		return false, storeError("checking access token", err)
	}
	return exists, nil
}
