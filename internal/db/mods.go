package db

import (
	"context"
	"strings"

	"acorn/internal/models"
)

const modColumns = `id, author, title, description, game_name, game_version_major, game_version_minor, file_data, version, created_at, updated_at`

func (db *DB) CreateMod(ctx context.Context, mod *models.Mod) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.ExecContext(ctx,
		`INSERT INTO mods (`+modColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mod.ID,
		mod.Author,
		mod.Title,
		mod.Description,
		mod.GameName,
		mod.GameVersionMajor,
		mod.GameVersionMinor,
		mod.FileKey,
		mod.Version,
		mod.CreatedAt.UTC(),
		mod.UpdatedAt.UTC(),
	)
	if err != nil {
		if IsForeignKeyError(err) {
			return ErrNotFound
		}
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return storeError("creating mod", err)
	}
	return nil
}

func (db *DB) GetMod(ctx context.Context, id string) (*models.Mod, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var mod models.Mod
	if err := db.GetContext(ctx, &mod, `SELECT `+modColumns+` FROM mods WHERE id = ?`, id); err != nil {
		return nil, notFoundOr("querying mod", err)
	}
	return &mod, nil
}

func (db *DB) GetModAuthor(ctx context.Context, id string) (string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var author string
	if err := db.GetContext(ctx, &author, `SELECT author FROM mods WHERE id = ?`, id); err != nil {
		return "", notFoundOr("querying mod author", err)
	}
	return author, nil
}

// UpdateMod applies update and bumps the version with a single
// "version = version + 1" expression, returning the new version and the file
// key the row held before the update.
func (db *DB) UpdateMod(ctx context.Context, update models.ModUpdate) (int64, string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, "", storeError("starting mod update transaction", err)
	}
	defer tx.Rollback()

	var previousFileKey string
	err = tx.GetContext(ctx, &previousFileKey,
		`SELECT file_data FROM mods WHERE id = ? AND author = ?`,
		update.ID, update.Author,
	)
	if err != nil {
		return 0, "", notFoundOr("loading mod before update", err)
	}

	var version int64
	err = tx.GetContext(ctx, &version,
		`UPDATE mods
		    SET version = version + 1,
		        description = COALESCE(?, description),
		        file_data = COALESCE(?, file_data),
		        updated_at = ?
		  WHERE id = ?
		    AND author = ?
		 RETURNING version`,
		update.Description,
		update.FileKey,
		update.UpdatedAt.UTC(),
		update.ID,
		update.Author,
	)
	if err != nil {
		return 0, "", notFoundOr("updating mod", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, "", storeError("committing mod update", err)
	}

	return version, previousFileKey, nil
}

func (db *DB) DeleteMod(ctx context.Context, id, author string) (string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var fileKey string
	err := db.GetContext(ctx, &fileKey,
		`DELETE FROM mods WHERE id = ? AND author = ? RETURNING file_data`,
		id, author,
	)
	if err != nil {
		return "", notFoundOr("deleting mod", err)
	}
	return fileKey, nil
}

// SearchMods returns mods whose title or description contains every term,
// ranking title matches on the first term ahead of description-only matches.
func (db *DB) SearchMods(ctx context.Context, terms []string, limit int) ([]models.Mod, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	for _, term := range terms {
		pattern := containsPattern(term)
		where = append(where, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	args = append(args, containsPattern(terms[0]), limit)

	query := `SELECT ` + modColumns + ` FROM mods
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY (title LIKE ? ESCAPE '\') DESC, updated_at DESC
		LIMIT ?`

	var mods []models.Mod
	if err := db.SelectContext(ctx, &mods, query, args...); err != nil {
		return nil, storeError("searching mods", err)
	}
	return mods, nil
}
