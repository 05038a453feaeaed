package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	qb "github.com/riskibarqy/apex-leaderboard/internal/platform/querybuilder"
)

const upsertOverrideSuffix = `ON CONFLICT (player_key) WHERE deleted_at IS NULL DO UPDATE SET
	player_name = EXCLUDED.player_name,
	identity = EXCLUDED.identity,
	display_name = EXCLUDED.display_name,
	aliases = EXCLUDED.aliases,
	updated_at = EXCLUDED.updated_at
RETURNING id, player_key, player_name, identity, display_name, aliases, created_at, updated_at, deleted_at`

var overrideColumns = []string{"id", "player_key", "player_name", "identity", "display_name", "aliases", "created_at", "updated_at", "deleted_at"}

type OverrideRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewOverrideRepository(db *sqlx.DB) *OverrideRepository {
	return &OverrideRepository{db: db, now: time.Now}
}

func (r *OverrideRepository) Get(ctx context.Context, playerName string) (override.Entry, bool, error) {
	key := override.NormalizeKey(playerName)
	query, args, err := qb.Select(overrideColumns...).From(overrideTable).
		Where(
			qb.Eq("player_key", key),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return override.Entry{}, false, fmt.Errorf("build get override query: %w", err)
	}

	var row overrideTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isPreparedStatementFailure(err) {
			return r.getLiteral(ctx, key)
		}
		if isNotFound(err) {
			return override.Entry{}, false, nil
		}
		return override.Entry{}, false, fmt.Errorf("get override: %w", err)
	}

	return overrideFromRow(row), true, nil
}

// getLiteral retries Get without bind parameters for poolers that lost the
// prepared statement.
func (r *OverrideRepository) getLiteral(ctx context.Context, key string) (override.Entry, bool, error) {
	query, args, err := qb.Select(overrideColumns...).From(overrideTable).
		Where(
			qb.EqLiteral("player_key", key),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return override.Entry{}, false, fmt.Errorf("build get override literal query: %w", err)
	}

	var row overrideTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return override.Entry{}, false, nil
		}
		return override.Entry{}, false, fmt.Errorf("get override literal fallback: %w", err)
	}
	return overrideFromRow(row), true, nil
}

func (r *OverrideRepository) Put(ctx context.Context, entry override.Entry) (override.Entry, error) {
	query, args, err := buildUpsertOverrideQuery(entry, r.now().UTC())
	if err != nil {
		return override.Entry{}, fmt.Errorf("build upsert override query: %w", err)
	}

	var row overrideTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return override.Entry{}, fmt.Errorf("upsert override player=%s: %w", entry.PlayerName, err)
	}
	return overrideFromRow(row), nil
}

func (r *OverrideRepository) Delete(ctx context.Context, playerName string) (bool, error) {
	query, args, err := buildSoftDeleteOverrideQuery(override.NormalizeKey(playerName), r.now().UTC())
	if err != nil {
		return false, fmt.Errorf("build delete override query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete override player=%s: %w", playerName, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete override rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *OverrideRepository) List(ctx context.Context) ([]override.Entry, error) {
	query, args, err := qb.Select(overrideColumns...).From(overrideTable).
		Where(qb.IsNull("deleted_at")).
		OrderBy("player_key").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list overrides query: %w", err)
	}

	var rows []overrideTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}

	out := make([]override.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, overrideFromRow(row))
	}
	return out, nil
}

func buildUpsertOverrideQuery(entry override.Entry, now time.Time) (string, []any, error) {
	// a nil StringArray binds as NULL; the column is NOT NULL.
	aliases := pq.StringArray{}
	aliases = append(aliases, override.NormalizeAliases(entry.PlayerName, entry.Aliases)...)
	return qb.InsertModel(overrideTable, overrideInsertModel{
		PlayerKey:   entry.Key(),
		PlayerName:  entry.PlayerName,
		Identity:    entry.Identity,
		DisplayName: entry.DisplayName,
		Aliases:     aliases,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, upsertOverrideSuffix)
}

func buildSoftDeleteOverrideQuery(key string, now time.Time) (string, []any, error) {
	return qb.Update(overrideTable).
		Set("deleted_at", now).
		Set("updated_at", now).
		Where(
			qb.Eq("player_key", key),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
}

func overrideFromRow(row overrideTableModel) override.Entry {
	return override.Entry{
		PlayerName:  row.PlayerName,
		Identity:    row.Identity,
		DisplayName: row.DisplayName,
		Aliases:     override.NormalizeAliases(row.PlayerName, row.Aliases),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
