package mods

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"acorn/internal/blob"
	"acorn/internal/db"
	"acorn/internal/models"
)

type fixture struct {
	svc      *Service
	store    *db.DB
	files    *blob.Local
	filesDir string
}

func newFixture(t *testing.T, authors ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := db.Open(filepath.Join(dir, "mods.db"), db.Options{MaxOpenConns: 4, QueryTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	filesDir := filepath.Join(dir, "blobs")
	files, err := blob.NewLocal(filesDir, 1<<20)
	if err != nil {
		t.Fatalf("blob.NewLocal() error = %v", err)
	}

	for _, author := range authors {
		err := store.CreateAccount(context.Background(), &models.Account{
			Username:   author,
			ExternalID: "ext-" + author,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			t.Fatalf("CreateAccount(%q) error = %v", author, err)
		}
	}
	return &fixture{svc: NewService(store, files), store: store, files: files, filesDir: filesDir}
}

func (f *fixture) createMod(t *testing.T, author string) *models.Mod {
	t.Helper()
	mod, err := f.svc.Create(context.Background(), CreateInput{
		Author:      author,
		Title:       "Better Menus",
		Description: "Rewrites the pause menu",
		GameName:    "Undertale",
		GameVersion: "1.8",
		File:        strings.NewReader("payload v1"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return mod
}

func readFile(t *testing.T, f *fixture, modID string) string {
	t.Helper()
	_, rc, err := f.svc.OpenFile(context.Background(), modID)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(data)
}

func TestAuthorizeMutation(t *testing.T) {
	users := []string{"alice", "bob", "carol"}
	f := newFixture(t, users...)
	ctx := context.Background()

	owned := map[string]string{}
	for _, author := range users {
		owned[f.createMod(t, author).ID] = author
	}

	for modID, author := range owned {
		for _, username := range append(users, "stranger", "ALICE", "") {
			err := f.svc.AuthorizeMutation(ctx, modID, username)
			if username == author {
				if err != nil {
					t.Fatalf("AuthorizeMutation(own mod, %q) = %v, want nil", username, err)
				}
				continue
			}
			if !errors.Is(err, ErrForbidden) {
				t.Fatalf("AuthorizeMutation(mod by %q, %q) = %v, want ErrForbidden", author, username, err)
			}
		}
	}

	if err := f.svc.AuthorizeMutation(ctx, "00000000-0000-0000-0000-000000000000", "alice"); !errors.Is(err, ErrModNotFound) {
		t.Fatalf("AuthorizeMutation(missing) = %v, want ErrModNotFound", err)
	}
}

func TestCreateSanitizesAndStoresFile(t *testing.T) {
	f := newFixture(t, "alice")

	mod, err := f.svc.Create(context.Background(), CreateInput{
		Author:      "alice",
		Title:       "  <b>“Fast” Travel</b> – Redux ",
		Description: "Teleport <script>alert(1)</script>anywhere",
		GameName:    "Deltarune",
		GameVersion: "2.10",
		File:        strings.NewReader("zip bytes"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if mod.Title != `"Fast" Travel - Redux` {
		t.Fatalf("Title = %q, want %q", mod.Title, `"Fast" Travel - Redux`)
	}
	if mod.Description != "Teleport anywhere" {
		t.Fatalf("Description = %q, want %q", mod.Description, "Teleport anywhere")
	}
	if mod.GameVersion() != "2.10" || mod.Version != 1 {
		t.Fatalf("GameVersion() = %q, Version = %d, want 2.10 and 1", mod.GameVersion(), mod.Version)
	}
	if got := readFile(t, f, mod.ID); got != "zip bytes" {
		t.Fatalf("file = %q, want %q", got, "zip bytes")
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, "alice")

	base := CreateInput{
		Author:      "alice",
		Title:       "Title",
		Description: "Description",
		GameName:    "Game",
		GameVersion: "1.0",
	}
	tests := []struct {
		name   string
		modify func(*CreateInput)
	}{
		{"blank title", func(in *CreateInput) { in.Title = "   " }},
		{"markup only description", func(in *CreateInput) { in.Description = "<img src=x>" }},
		{"bad version", func(in *CreateInput) { in.GameVersion = "one.two" }},
		{"version without minor", func(in *CreateInput) { in.GameVersion = "1" }},
		{"negative version", func(in *CreateInput) { in.GameVersion = "-1.0" }},
		{"long title", func(in *CreateInput) { in.Title = strings.Repeat("x", MaxTitleLength+1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			in.File = strings.NewReader("data")
			tt.modify(&in)
			if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Create() = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestUpdateReplacesFileAndBumpsVersion(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	mod := f.createMod(t, "alice")

	description := "Now with settings"
	version, err := f.svc.Update(ctx, UpdateInput{
		ID:          mod.ID,
		Username:    "alice",
		Description: &description,
		File:        strings.NewReader("payload v2"),
	})
	if err != nil || version != 2 {
		t.Fatalf("Update() = %d, %v, want 2", version, err)
	}
	if got := readFile(t, f, mod.ID); got != "payload v2" {
		t.Fatalf("file = %q, want %q", got, "payload v2")
	}
	if _, err := f.files.Open(ctx, mod.FileKey); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("Open(previous key) = %v, want blob.ErrNotFound", err)
	}

	if _, err := f.svc.Update(ctx, UpdateInput{ID: mod.ID, Username: "bob", Description: &description}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Update(non-author) = %v, want ErrForbidden", err)
	}

	stored, err := f.svc.Get(ctx, mod.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Description != description || stored.Version != 2 {
		t.Fatalf("stored = %q v%d, want %q v2", stored.Description, stored.Version, description)
	}
}

func TestUpdateConcurrentEditsNeverLoseAVersion(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	mod := f.createMod(t, "alice")

	var wg sync.WaitGroup
	results := make([]int64, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			description := "edit"
			results[i], errs[i] = f.svc.Update(ctx, UpdateInput{ID: mod.ID, Username: "alice", Description: &description})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Update() #%d error = %v", i, err)
		}
	}
	if results[0]+results[1] != 5 || results[0] == results[1] {
		t.Fatalf("versions = %v, want {2, 3}", results)
	}

	stored, err := f.svc.Get(ctx, mod.ID)
	if err != nil || stored.Version != 3 {
		t.Fatalf("Get() version = %v, %v, want 3", stored, err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	mod := f.createMod(t, "alice")

	if err := f.svc.Delete(ctx, mod.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Delete(non-author) = %v, want ErrForbidden", err)
	}
	if err := f.svc.Delete(ctx, mod.ID, "alice"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := f.svc.Get(ctx, mod.ID); !errors.Is(err, ErrModNotFound) {
		t.Fatalf("Get(deleted) = %v, want ErrModNotFound", err)
	}
	if _, err := f.files.Open(ctx, mod.FileKey); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("Open(deleted file) = %v, want blob.ErrNotFound", err)
	}
	if err := f.svc.Delete(ctx, mod.ID, "alice"); !errors.Is(err, ErrModNotFound) {
		t.Fatalf("second Delete() = %v, want ErrModNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	mod := f.createMod(t, "alice")

	found, err := f.svc.Search(ctx, "  pause!!  ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != mod.ID {
		t.Fatalf("Search(pause) = %v, want the created mod", found)
	}

	found, err = f.svc.Search(ctx, "%%% ...")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if found == nil || len(found) != 0 {
		t.Fatalf("Search(punctuation) = %#v, want empty non-nil slice", found)
	}
}

func TestSearchTerms(t *testing.T) {
	got := searchTerms("Speed-run, timer! 100%", 8)
	want := []string{"Speed", "run", "timer", "100"}
	if len(got) != len(want) {
		t.Fatalf("searchTerms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("searchTerms() = %v, want %v", got, want)
		}
	}

	if got := searchTerms("a b c d", 2); len(got) != 2 {
		t.Fatalf("searchTerms() with limit = %v, want 2 terms", got)
	}
}

func TestCreateRollsBackFileWhenRowFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{
		Author:      "ghost",
		Title:       "Orphan",
		Description: "No author row",
		GameName:    "Game",
		GameVersion: "1.0",
		File:        strings.NewReader("data"),
	})
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("Create(unknown author) = %v, want db.ErrNotFound", err)
	}

	var leftover []string
	filepath.WalkDir(f.filesDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			leftover = append(leftover, path)
		}
		return nil
	})
	if len(leftover) != 0 {
		t.Fatalf("files left after failed create: %v", leftover)
	}
}
