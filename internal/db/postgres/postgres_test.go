package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"acorn/internal/db"
	"acorn/internal/models"
)

// setupTestStore resets the public schema and opens a migrated store.
// Skipped when DATABASE_URL is not set.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping PostgreSQL tests")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	_, err = pool.Exec(ctx, `drop schema public cascade; create schema public;`)
	pool.Close()
	if err != nil {
		t.Fatalf("resetting schema: %v", err)
	}

	store, err := Open(ctx, databaseURL, db.Options{MaxOpenConns: 8, QueryTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createAccount(t *testing.T, store *Store, username string) {
	t.Helper()
	err := store.CreateAccount(context.Background(), &models.Account{
		Username:   username,
		ExternalID: "ext-" + username,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateAccount(%q) error = %v", username, err)
	}
}

func TestAccountUniqueness(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createAccount(t, store, "alice")

	err := store.CreateAccount(ctx, &models.Account{Username: "alice", ExternalID: "other", CreatedAt: time.Now()})
	if !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("CreateAccount(same username) = %v, want db.ErrDuplicate", err)
	}
	err = store.CreateAccount(ctx, &models.Account{Username: "bob", ExternalID: "ext-alice", CreatedAt: time.Now()})
	if !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("CreateAccount(same external id) = %v, want db.ErrDuplicate", err)
	}

	account, err := store.GetAccountByExternalID(ctx, "ext-alice")
	if err != nil || account.Username != "alice" {
		t.Fatalf("GetAccountByExternalID() = %v, %v, want alice", account, err)
	}
}

func TestTempLoginTokenLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.CreateTempLoginToken(ctx, "tok1", "alice", now.Add(5*time.Minute)); err != nil {
		t.Fatalf("CreateTempLoginToken() error = %v", err)
	}
	if err := store.CreateTempLoginToken(ctx, "tok1", "alice", now.Add(5*time.Minute)); !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("second CreateTempLoginToken() = %v, want db.ErrDuplicate", err)
	}
	if err := store.CreateTempLoginToken(ctx, "stale", "alice", now.Add(-time.Second)); err != nil {
		t.Fatalf("CreateTempLoginToken(stale) error = %v", err)
	}

	username, err := store.ConsumeTempLoginToken(ctx, "tok1", now)
	if err != nil || username != "alice" {
		t.Fatalf("ConsumeTempLoginToken() = %q, %v, want alice", username, err)
	}
	for _, token := range []string{"tok1", "stale"} {
		if _, err := store.ConsumeTempLoginToken(ctx, token, now); !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("ConsumeTempLoginToken(%q) = %v, want db.ErrNotFound", token, err)
		}
	}

	deleted, err := store.DeleteExpiredTempLoginTokens(ctx, now)
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteExpiredTempLoginTokens() = %d, %v, want 1", deleted, err)
	}
}

func TestAccessTokens(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createAccount(t, store, "alice")

	err := store.CreateAccessToken(ctx, &models.AccessToken{
		TokenHash: "hash-1", Username: "alice", DeviceInfo: `{"os":"linux"}`, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateAccessToken() error = %v", err)
	}
	err = store.CreateAccessToken(ctx, &models.AccessToken{TokenHash: "hash-2", Username: "ghost", CreatedAt: time.Now()})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("CreateAccessToken(unknown account) = %v, want db.ErrNotFound", err)
	}

	if ok, err := store.AccessTokenExists(ctx, "alice", "hash-1"); err != nil || !ok {
		t.Fatalf("AccessTokenExists(alice) = %v, %v, want true", ok, err)
	}
	if ok, err := store.AccessTokenExists(ctx, "bob", "hash-1"); err != nil || ok {
		t.Fatalf("AccessTokenExists(bob) = %v, %v, want false", ok, err)
	}
}

func TestModVersionBumpAndSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createAccount(t, store, "alice")

	now := time.Now()
	mod := &models.Mod{
		ID:               uuid.NewString(),
		Author:           "alice",
		Title:            "Speedrun Timer",
		Description:      "Adds an in-game timer",
		GameName:         "Undertale",
		GameVersionMajor: 1,
		GameVersionMinor: 8,
		FileKey:          "mods/a",
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := store.CreateMod(ctx, mod); err != nil {
		t.Fatalf("CreateMod() error = %v", err)
	}

	const editors = 5
	errs := make(chan error, editors)
	var wg sync.WaitGroup
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.UpdateMod(ctx, models.ModUpdate{ID: mod.ID, Author: "alice", UpdatedAt: time.Now()})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("UpdateMod() error = %v", err)
		}
	}

	stored, err := store.GetMod(ctx, mod.ID)
	if err != nil {
		t.Fatalf("GetMod() error = %v", err)
	}
	if stored.Version != editors+1 || stored.GameVersion() != "1.8" {
		t.Fatalf("GetMod() = v%d %s, want v%d 1.8", stored.Version, stored.GameVersion(), editors+1)
	}

	if _, _, err := store.UpdateMod(ctx, models.ModUpdate{ID: mod.ID, Author: "bob", UpdatedAt: time.Now()}); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("UpdateMod(wrong author) = %v, want db.ErrNotFound", err)
	}
	if _, err := store.GetModAuthor(ctx, "not-a-uuid"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("GetModAuthor(not-a-uuid) = %v, want db.ErrNotFound", err)
	}

	found, err := store.SearchMods(ctx, []string{"speedrun"}, 50)
	if err != nil || len(found) != 1 || found[0].ID != mod.ID {
		t.Fatalf("SearchMods(speedrun) = %v, %v, want the created mod", found, err)
	}

	fileKey, err := store.DeleteMod(ctx, mod.ID, "alice")
	if err != nil || fileKey != "mods/a" {
		t.Fatalf("DeleteMod() = %q, %v, want mods/a", fileKey, err)
	}
}
