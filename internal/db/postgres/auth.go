package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"acorn/internal/models"
)

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`insert into accounts (username, external_id, created_at) values ($1, $2, $3)`,
		account.Username, account.ExternalID, account.CreatedAt.UTC(),
	)
	if err != nil {
		return mapPgErr("create account", err)
	}
	return nil
}

func (s *Store) GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	return s.findAccount(ctx, `select username, external_id, created_at from accounts where external_id = $1`, externalID)
}

func (s *Store) findAccount(ctx context.Context, query string, args ...any) (*models.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgErr("query account", err)
	}
	account, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.Account])
	if err != nil {
		return nil, mapPgErr("scan account", err)
	}
	return &account, nil
}

func (s *Store) CreateTempLoginToken(ctx context.Context, token, username string, expiresAt time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`insert into temp_login_tokens (token, username, expires_at) values ($1, $2, $3)`,
		token, username, expiresAt.UTC(),
	)
	if err != nil {
		return mapPgErr("create temp login token", err)
	}
	return nil
}

func (s *Store) ConsumeTempLoginToken(ctx context.Context, token string, now time.Time) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var username string
	err := s.pool.QueryRow(ctx, `
		delete from temp_login_tokens
		where token = $1 and expires_at > $2
		returning username
	`, token, now.UTC()).Scan(&username)
	if err != nil {
		return "", mapPgErr("consume temp login token", err)
	}
	return username, nil
}

func (s *Store) DeleteExpiredTempLoginTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `delete from temp_login_tokens where expires_at < $1`, now.UTC())
	if err != nil {
		return 0, mapPgErr("delete expired temp login tokens", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`insert into access_tokens (token, username, device_info, created_at) values ($1, $2, $3, $4)`,
		token.TokenHash, token.Username, token.DeviceInfo, token.CreatedAt.UTC(),
	)
	if err != nil {
		return mapPgErr("create access token", err)
	}
	return nil
}

func (s *Store) AccessTokenExists(ctx context.Context, username, tokenHash string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`select exists (select 1 from access_tokens where username = $1 and token = $2)`,
		username, tokenHash,
	).Scan(&exists)
	if err != nil {
		return false, mapPgErr("check access token", err)
	}
	return exists, nil
}
