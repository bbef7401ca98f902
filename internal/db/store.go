package db

import (
	"context"
	"errors"
	"time"

	"acorn/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
	ErrTimeout   = errors.New("store operation timed out")
)

// Store is the durable state shared by every request. Implementations must
// express temp token insertion, account insertion and the mod version bump as
// single atomic statements.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error)

	CreateTempLoginToken(ctx context.Context, token, username string, expiresAt time.Time) error
	ConsumeTempLoginToken(ctx context.Context, token string, now time.Time) (string, error)
	DeleteExpiredTempLoginTokens(ctx context.Context, now time.Time) (int64, error)

	CreateAccessToken(ctx context.Context, token *models.AccessToken) error
	AccessTokenExists(ctx context.Context, username, tokenHash string) (bool, error)

	CreateMod(ctx context.Context, mod *models.Mod) error
	GetMod(ctx context.Context, id string) (*models.Mod, error)
	GetModAuthor(ctx context.Context, id string) (string, error)
	UpdateMod(ctx context.Context, update models.ModUpdate) (version int64, previousFileKey string, err error)
	DeleteMod(ctx context.Context, id, author string) (fileKey string, err error)
	SearchMods(ctx context.Context, terms []string, limit int) ([]models.Mod, error)

	Ping(ctx context.Context) error
	Close() error
}

// Options bounds how the store uses its connection pool.
type Options struct {
	MaxOpenConns int
	QueryTimeout time.Duration
}
