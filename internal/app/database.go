package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/apex-leaderboard/internal/config"
)

const (
	tracedQueryLimit = 512
	dbPingTimeout    = 5 * time.Second

	// The override table is tiny and written only by admins.
	dbMaxOpenConns = 4
	dbMaxIdleConns = 2
)

// openDB connects the override store. Queries are traced with whitespace
// collapsed so spans stay readable.
func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	dsn := postgresDSN(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithDBName(databaseName(dsn)),
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithQueryFormatter(traceableQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("open override database: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping override database: %w", err)
	}
	return db, nil
}

// postgresDSN sets disable_prepared_binary_result=yes unless the URL already
// carries a value. Transaction poolers need it.
func postgresDSN(raw string, disablePreparedBinary bool) string {
	if !disablePreparedBinary {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	q := u.Query()
	if q.Has("disable_prepared_binary_result") {
		return raw
	}
	q.Set("disable_prepared_binary_result", "yes")
	u.RawQuery = q.Encode()
	return u.String()
}

// databaseName accepts both URL and key=value DSNs.
func databaseName(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return strings.Trim(u.Path, "/ ")
	}
	for _, field := range strings.Fields(dsn) {
		if name, ok := strings.CutPrefix(field, "dbname="); ok {
			return strings.Trim(name, `"'`)
		}
	}
	return ""
}

func traceableQuery(query string) string {
	collapsed := strings.Join(strings.Fields(query), " ")
	if len(collapsed) <= tracedQueryLimit {
		return collapsed
	}
	return collapsed[:tracedQueryLimit] + "..."
}
