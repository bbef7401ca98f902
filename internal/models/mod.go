package models

import (
	"fmt"
	"time"
)

type Mod struct {
	ID               string    `db:"id" json:"id"`
	Author           string    `db:"author" json:"author"`
	Title            string    `db:"title" json:"title"`
	Description      string    `db:"description" json:"description"`
	GameName         string    `db:"game_name" json:"gameName"`
	GameVersionMajor int       `db:"game_version_major" json:"-"`
	GameVersionMinor int       `db:"game_version_minor" json:"-"`
	FileKey          string    `db:"file_data" json:"-"`
	Version          int64     `db:"version" json:"version"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// GameVersion renders the targeted game version as "major.minor".
func (m *Mod) GameVersion() string {
	return fmt.Sprintf("%d.%d", m.GameVersionMajor, m.GameVersionMinor)
}

// ModUpdate describes an accepted mutation. Nil fields are left unchanged.
type ModUpdate struct {
	ID          string
	Author      string
	Description *string
	FileKey     *string
	UpdatedAt   time.Time
}
