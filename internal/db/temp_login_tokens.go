package db

import (
	"context"
	"time"
)

func (db *DB) CreateTempLoginToken(ctx context.Context, token, username string, expiresAt time.Time) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO temp_login_tokens (token, username, expires_at) VALUES (?, ?, ?)`,
		token, username, expiresAt.UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return storeError("creating temp login token", err)
	}
	return nil
}

// ConsumeTempLoginToken deletes a live token and returns its username in the
// same statement. A consumed or expired token reports ErrNotFound.
func (db *DB) ConsumeTempLoginToken(ctx context.Context, token string, now time.Time) (string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var username string
	err := db.GetContext(ctx, &username,
		`DELETE FROM temp_login_tokens
		  WHERE token = ?
		    AND expires_at > ?
		 RETURNING username`,
		token, now.UTC(),
	)
	if err != nil {
		return "", notFoundOr("consuming temp login token", err)
	}
	return username, nil
}

func (db *DB) DeleteExpiredTempLoginTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx, `DELETE FROM temp_login_tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, storeError("deleting expired temp login tokens", err)
	}

	return result.RowsAffected()
}
