package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
)

func TestIsPreparedStatementFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pq statement missing", &pq.Error{Code: "26000", Message: "unnamed prepared statement does not exist"}, true},
		{"pq bind mismatch", &pq.Error{Code: "08P01", Message: "bind message supplies 2 parameters, but prepared statement \"\" requires 1"}, true},
		{"pq other protocol violation", &pq.Error{Code: "08P01", Message: "unexpected message type"}, false},
		{"pq undefined table", &pq.Error{Code: "42P01", Message: "relation \"streamer_overrides\" does not exist"}, false},
		{"wrapped pq error", fmt.Errorf("get override: %w", &pq.Error{Code: "26000"}), true},
		{"pooler text", errors.New("unnamed prepared statement does not exist"), true},
		{"unrelated text", errors.New("connection refused"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := isPreparedStatementFailure(tc.err); got != tc.want {
				t.Fatalf("isPreparedStatementFailure(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsNotFound_Wrapped(t *testing.T) {
	if !isNotFound(fmt.Errorf("get: %w", sql.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to be not-found")
	}
}

func TestBuildUpsertOverrideQuery_EmptyAliasesAreNotNull(t *testing.T) {
	t.Parallel()

	_, args, err := buildUpsertOverrideQuery(override.Entry{PlayerName: "Zeeko", Identity: "https://twitch.tv/zeeko"}, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	aliases, ok := args[4].(pq.StringArray)
	if !ok || aliases == nil || len(aliases) != 0 {
		t.Fatalf("expected empty non-nil alias array, got %#v", args[4])
	}
}

func TestBuildUpsertOverrideQuery(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	query, args, err := buildUpsertOverrideQuery(override.Entry{
		PlayerName:  " ImperialHal ",
		Identity:    "https://twitch.tv/tsm_imperialhal",
		DisplayName: "Hal",
		Aliases:     []string{"TSM_Hal", " tsm_hal ", "imperialhal"},
	}, now)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	wantPrefix := "INSERT INTO streamer_overrides (player_key, player_name, identity, display_name, aliases, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (player_key) WHERE deleted_at IS NULL DO UPDATE SET"
	if !strings.HasPrefix(query, wantPrefix) {
		t.Fatalf("unexpected query:\n%s", query)
	}
	if strings.Contains(query, "created_at = EXCLUDED") {
		t.Fatalf("upsert must keep the original created_at")
	}
	if len(args) != 7 || args[0] != "imperialhal" || args[2] != "https://twitch.tv/tsm_imperialhal" || args[5] != now {
		t.Fatalf("unexpected args: %+v", args)
	}
	if aliases, ok := args[4].(pq.StringArray); !ok || len(aliases) != 1 || aliases[0] != "TSM_Hal" {
		t.Fatalf("expected normalized aliases, got %#v", args[4])
	}
	if !strings.Contains(query, "aliases = EXCLUDED.aliases") {
		t.Fatalf("upsert must replace aliases")
	}
}

func TestBuildSoftDeleteOverrideQuery(t *testing.T) {
	now := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	query, args, err := buildSoftDeleteOverrideQuery("imperialhal", now)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	want := "UPDATE streamer_overrides SET deleted_at = $1, updated_at = $2 WHERE player_key = $3 AND deleted_at IS NULL"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 3 || args[2] != "imperialhal" {
		t.Fatalf("unexpected args: %+v", args)
	}
}
