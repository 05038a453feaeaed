package postgres

import (
	"time"

	"github.com/lib/pq"
)

const overrideTable = "streamer_overrides"

type overrideTableModel struct {
	ID          int64          `db:"id"`
	PlayerKey   string         `db:"player_key"`
	PlayerName  string         `db:"player_name"`
	Identity    string         `db:"identity"`
	DisplayName string         `db:"display_name"`
	Aliases     pq.StringArray `db:"aliases"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	DeletedAt   *time.Time     `db:"deleted_at"`
}

type overrideInsertModel struct {
	PlayerKey   string         `db:"player_key"`
	PlayerName  string         `db:"player_name"`
	Identity    string         `db:"identity"`
	DisplayName string         `db:"display_name"`
	Aliases     pq.StringArray `db:"aliases"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}
