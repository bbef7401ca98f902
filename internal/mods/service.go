// Package mods implements mod publishing and the ownership gate that guards
// every mutation of an existing mod.
package mods

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"acorn/internal/blob"
	"acorn/internal/db"
	"acorn/internal/models"
)

const (
	MaxTitleLength       = 128
	MaxDescriptionLength = 4096
	MaxGameNameLength    = 128
	MaxSearchResults     = 50
	maxSearchTerms       = 8
)

var (
	ErrModNotFound  = errors.New("mod not found")
	ErrForbidden    = errors.New("not the author of this mod")
	ErrInvalidInput = errors.New("invalid mod input")
)

type Store interface {
	CreateMod(ctx context.Context, mod *models.Mod) error
	GetMod(ctx context.Context, id string) (*models.Mod, error)
	GetModAuthor(ctx context.Context, id string) (string, error)
	UpdateMod(ctx context.Context, update models.ModUpdate) (int64, string, error)
	DeleteMod(ctx context.Context, id, author string) (string, error)
	SearchMods(ctx context.Context, terms []string, limit int) ([]models.Mod, error)
}

type Service struct {
	store Store
	files blob.Store
	now   func() time.Time
}

func NewService(store Store, files blob.Store) *Service {
	return &Service{
		store: store,
		files: files,
		now:   time.Now,
	}
}

type CreateInput struct {
	Author      string
	Title       string
	Description string
	GameName    string
	GameVersion string
	File        io.Reader
}

type UpdateInput struct {
	ID          string
	Username    string
	Description *string
	// Nil leaves the current payload in place.
	File io.Reader
}

// AuthorizeMutation allows a change to modID only for its recorded author.
func (s *Service) AuthorizeMutation(ctx context.Context, modID, username string) error {
	author, err := s.store.GetModAuthor(ctx, modID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrModNotFound
		}
		return fmt.Errorf("looking up mod author: %w", err)
	}
	if author != username {
		return ErrForbidden
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Mod, error) {
	title, err := sanitizeText("title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	description, err := sanitizeText("description", in.Description, MaxDescriptionLength)
	if err != nil {
		return nil, err
	}
	gameName, err := sanitizeText("gameName", in.GameName, MaxGameNameLength)
	if err != nil {
		return nil, err
	}
	major, minor, err := parseGameVersion(in.GameVersion)
	if err != nil {
		return nil, err
	}
	if in.File == nil {
		return nil, fmt.Errorf("%w: fileData is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	mod := &models.Mod{
		ID:               uuid.NewString(),
		Author:           in.Author,
		Title:            title,
		Description:      description,
		GameName:         gameName,
		GameVersionMajor: major,
		GameVersionMinor: minor,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	mod.FileKey = blob.ModFileKey(mod.ID)

	if _, err := s.files.Put(ctx, mod.FileKey, in.File); err != nil {
		return nil, fmt.Errorf("storing mod file: %w", err)
	}
	if err := s.store.CreateMod(ctx, mod); err != nil {
		s.discardFile(mod.FileKey)
		return nil, fmt.Errorf("creating mod: %w", err)
	}
	return mod, nil
}

// Update applies an author's edit and returns the new version.
func (s *Service) Update(ctx context.Context, in UpdateInput) (int64, error) {
	if err := s.AuthorizeMutation(ctx, in.ID, in.Username); err != nil {
		return 0, err
	}

	update := models.ModUpdate{
		ID:        in.ID,
		Author:    in.Username,
		UpdatedAt: s.now().UTC(),
	}
	if in.Description != nil {
		description, err := sanitizeText("description", *in.Description, MaxDescriptionLength)
		if err != nil {
			return 0, err
		}
		update.Description = &description
	}

	var newKey string
	if in.File != nil {
		newKey = blob.ModFileKey(in.ID)
		if _, err := s.files.Put(ctx, newKey, in.File); err != nil {
			return 0, fmt.Errorf("storing mod file: %w", err)
		}
		update.FileKey = &newKey
	}

	version, previousKey, err := s.store.UpdateMod(ctx, update)
	if err != nil {
		if newKey != "" {
			s.discardFile(newKey)
		}
		if errors.Is(err, db.ErrNotFound) {
			// Deleted between the gate and the update.
			return 0, ErrModNotFound
		}
		return 0, fmt.Errorf("updating mod: %w", err)
	}

	if newKey != "" && previousKey != "" && previousKey != newKey {
		s.discardFile(previousKey)
	}
	return version, nil
}

func (s *Service) Delete(ctx context.Context, modID, username string) error {
	if err := s.AuthorizeMutation(ctx, modID, username); err != nil {
		return err
	}

	fileKey, err := s.store.DeleteMod(ctx, modID, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrModNotFound
		}
		return fmt.Errorf("deleting mod: %w", err)
	}
	if fileKey != "" {
		s.discardFile(fileKey)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, modID string) (*models.Mod, error) {
	mod, err := s.store.GetMod(ctx, modID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrModNotFound
		}
		return nil, fmt.Errorf("getting mod: %w", err)
	}
	return mod, nil
}

// OpenFile returns the mod's payload. The caller closes the reader.
func (s *Service) OpenFile(ctx context.Context, modID string) (*models.Mod, io.ReadCloser, error) {
	mod, err := s.Get(ctx, modID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.files.Open(ctx, mod.FileKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, ErrModNotFound
		}
		return nil, nil, fmt.Errorf("opening mod file: %w", err)
	}
	return mod, rc, nil
}

func (s *Service) Search(ctx context.Context, query string) ([]models.Mod, error) {
	terms := searchTerms(query, maxSearchTerms)
	if len(terms) == 0 {
		return []models.Mod{}, nil
	}

	found, err := s.store.SearchMods(ctx, terms, MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("searching mods: %w", err)
	}
	if found == nil {
		found = []models.Mod{}
	}
	return found, nil
}

// discardFile removes an object that no row references any more. Failures
// only leave an orphaned object behind, so they are logged and dropped.
func (s *Service) discardFile(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.files.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete mod file", "component", "mods", "key", key, "error", err)
	}
}
