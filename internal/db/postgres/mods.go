package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"acorn/internal/models"
)

const modColumns = `id::text as id, author, title, description, game_name, game_version_major, game_version_minor, file_data, version, created_at, updated_at`

const modSearchVector = `(setweight(to_tsvector('english', title), 'A') || setweight(to_tsvector('english', description), 'B'))`

func (s *Store) CreateMod(ctx context.Context, mod *models.Mod) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		insert into mods (id, author, title, description, game_name, game_version_major, game_version_minor, file_data, version, created_at, updated_at)
		values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
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
		return mapPgErr("create mod", err)
	}
	return nil
}

func (s *Store) GetMod(ctx context.Context, id string) (*models.Mod, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `select `+modColumns+` from mods where id = $1::uuid`, id)
	if err != nil {
		return nil, mapPgErr("query mod", err)
	}
	mod, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.Mod])
	if err != nil {
		return nil, mapPgErr("scan mod", err)
	}
	return &mod, nil
}

func (s *Store) GetModAuthor(ctx context.Context, id string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var author string
	if err := s.pool.QueryRow(ctx, `select author from mods where id = $1::uuid`, id).Scan(&author); err != nil {
		return "", mapPgErr("query mod author", err)
	}
	return author, nil
}

func (s *Store) UpdateMod(ctx context.Context, update models.ModUpdate) (int64, string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, "", mapPgErr("begin mod update", err)
	}
	defer tx.Rollback(ctx)

	var previousFileKey string
	err = tx.QueryRow(ctx,
		`select file_data from mods where id = $1::uuid and author = $2 for update`,
		update.ID, update.Author,
	).Scan(&previousFileKey)
	if err != nil {
		return 0, "", mapPgErr("lock mod", err)
	}

	var version int64
	err = tx.QueryRow(ctx, `
		update mods
		set version = version + 1,
		    description = coalesce($1, description),
		    file_data = coalesce($2, file_data),
		    updated_at = $3
		where id = $4::uuid and author = $5
		returning version
	`, update.Description, update.FileKey, update.UpdatedAt.UTC(), update.ID, update.Author).Scan(&version)
	if err != nil {
		return 0, "", mapPgErr("update mod", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, "", mapPgErr("commit mod update", err)
	}
	return version, previousFileKey, nil
}

func (s *Store) DeleteMod(ctx context.Context, id, author string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var fileKey string
	err := s.pool.QueryRow(ctx,
		`delete from mods where id = $1::uuid and author = $2 returning file_data`,
		id, author,
	).Scan(&fileKey)
	if err != nil {
		return "", mapPgErr("delete mod", err)
	}
	return fileKey, nil
}

func (s *Store) SearchMods(ctx context.Context, terms []string, limit int) ([]models.Mod, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		select `+modColumns+`
		from mods
		where `+modSearchVector+` @@ plainto_tsquery('english', $1)
		order by ts_rank_cd(`+modSearchVector+`, plainto_tsquery('english', $1)) desc, updated_at desc
		limit $2
	`, strings.Join(terms, " "), limit)
	if err != nil {
		return nil, mapPgErr("search mods", err)
	}
	mods, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Mod])
	if err != nil {
		return nil, mapPgErr("scan mods", err)
	}
	return mods, nil
}
