package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	"github.com/riskibarqy/apex-leaderboard/internal/infrastructure/repository/memory"
	leaderboardmock "github.com/riskibarqy/apex-leaderboard/internal/mocks/domain/leaderboard"
	livestatusmock "github.com/riskibarqy/apex-leaderboard/internal/mocks/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/cache"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

type testEnv struct {
	router    http.Handler
	source    *leaderboardmock.Source
	live      *livestatusmock.Fetcher
	overrides *memory.OverrideRepository
}

func newTestEnv(t *testing.T, cfg RouterConfig, seed ...override.Entry) testEnv {
	t.Helper()

	source := leaderboardmock.NewSource(t)
	live := livestatusmock.NewFetcher(t)
	overrides := memory.NewOverrideRepository(seed...)
	boards := cache.NewStore[leaderboard.Board](cache.Options{Name: "leaderboard", TTL: 5 * time.Minute})

	leaderboardService := usecase.NewLeaderboardService(source, overrides, live, boards, usecase.LeaderboardServiceConfig{
		DefaultLimit: 500,
		MaxPlayers:   500,
		Logger:       logging.NewNop(),
	})
	overrideService := usecase.NewOverrideService(overrides, live, time.Second, logging.NewNop())
	handler := NewHandler(leaderboardService, overrideService, logging.NewNop())

	return testEnv{
		router:    NewRouter(handler, logging.NewNop(), cfg),
		source:    source,
		live:      live,
		overrides: overrides,
	}
}

func (e testEnv) do(t *testing.T, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal response body %q: %v", rec.Body.String(), err)
	}
	return rec, decoded
}

func dataObject(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	return data
}

func TestHandler_GetLeaderboard_ServesThenCaches(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	env.source.
		On("FetchLeaderboard", mock.Anything, leaderboard.PlatformPC).
		Return(leaderboard.Snapshot{
			Platform: leaderboard.PlatformPC,
			Rows: []leaderboard.ScrapedRow{
				{Rank: 1, Name: "jukeyzfps", Points: 214956, RawIdentity: "anayayumi", Status: leaderboard.StatusInMatch},
				{Rank: 2, Name: "ImperialHal", Points: 201000, Status: leaderboard.StatusOffline},
			},
			ScrapedAt: time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC),
		}, nil).
		Once()
	live := livestatus.NewResult()
	live.Statuses["anayayumi"] = livestatus.Status{IsLive: true, UserName: "anayayumi", ViewerCount: 309, Game: "Apex Legends"}
	env.live.
		On("FetchLiveStatus", mock.Anything, []string{"anayayumi"}).
		Return(live, nil).
		Once()

	rec, body := env.do(t, http.MethodGet, "/v1/leaderboards/pc?limit=10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := dataObject(t, body)
	if data["platform"] != "PC" || data["cached"] != false || data["source"] != leaderboardSource {
		t.Fatalf("unexpected leaderboard data: %v", data)
	}
	if data["last_updated"] != "2026-02-11T12:00:00Z" {
		t.Fatalf("unexpected last_updated: %v", data["last_updated"])
	}
	players, _ := data["players"].([]any)
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %v", data["players"])
	}
	first, _ := players[0].(map[string]any)
	if first["is_live"] != true || first["status"] != string(leaderboard.StatusLive) {
		t.Fatalf("expected first player live: %v", first)
	}

	rec, body = env.do(t, http.MethodGet, "/v1/leaderboards/PC?limit=10", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on second call, got %d", rec.Code)
	}
	if dataObject(t, body)["cached"] != true {
		t.Fatalf("expected second call served from cache")
	}
}

func TestHandler_GetLeaderboard_RejectsBadInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})

	tests := []struct {
		name   string
		target string
	}{
		{name: "unknown platform", target: "/v1/leaderboards/stadia"},
		{name: "non numeric limit", target: "/v1/leaderboards/pc?limit=abc"},
		{name: "negative limit", target: "/v1/leaderboards/pc?limit=-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodGet, tt.target, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %v", rec.Code, body)
			}
		})
	}
}

func TestHandler_OverrideWrites_RequireAdminToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{AdminToken: "s3cret"})
	payload := `{"player_name":"LG_Naughty","twitch_username":"https://www.twitch.tv/Naughty","display_name":"Naughty"}`

	rec, _ := env.do(t, http.MethodPost, "/v1/overrides", payload, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/v1/overrides", payload, map[string]string{"X-Admin-Token": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	env.live.
		On("FetchLiveStatus", mock.Anything, []string{"naughty"}).
		Return(livestatus.NewResult(), nil).
		Once()

	rec, body := env.do(t, http.MethodPost, "/v1/overrides", payload, map[string]string{"X-Admin-Token": "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	data := dataObject(t, body)
	if data["identity"] != "https://www.twitch.tv/Naughty" || data["display_name"] != "Naughty" {
		t.Fatalf("unexpected override: %v", data)
	}

	rec, body = env.do(t, http.MethodGet, "/v1/overrides/lg_naughty", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stored override readable, got %d", rec.Code)
	}
	if dataObject(t, body)["player_name"] != "LG_Naughty" {
		t.Fatalf("unexpected stored override: %v", body)
	}
}

func TestHandler_PutOverride_OpenWithoutConfiguredToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	live := livestatus.NewResult()
	live.Statuses["zeeko_ttv"] = livestatus.Status{IsLive: true, UserName: "zeeko_ttv", ViewerCount: 42}
	env.live.
		On("FetchLiveStatus", mock.Anything, []string{"zeeko_ttv"}).
		Return(live, nil).
		Once()

	rec, body := env.do(t, http.MethodPut, "/v1/overrides/Zeeko", `{"identity":"twitch.tv/zeeko_ttv"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := dataObject(t, body)
	status, ok := data["live_status"].(map[string]any)
	if !ok || status["is_live"] != true {
		t.Fatalf("expected live status in response: %v", data)
	}
}

func TestHandler_PutOverride_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	rec, _ := env.do(t, http.MethodPut, "/v1/overrides/Zeeko", `{"identity":"zeeko","rp":1}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPut, "/v1/overrides/Zeeko", `{"display_name":"Z"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing identity, got %d", rec.Code)
	}
}

func TestHandler_DeleteOverride(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{}, override.Entry{PlayerName: "Hal", Identity: "https://twitch.tv/tsm_imperialhal"})

	rec, _ := env.do(t, http.MethodDelete, "/v1/overrides/hal", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec, body := env.do(t, http.MethodDelete, "/v1/overrides/hal", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d: %v", rec.Code, body)
	}
}

func TestHandler_ListOverrides_ReturnsEmptyArray(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	rec, body := env.do(t, http.MethodGet, "/v1/overrides", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	items, ok := body["data"].([]any)
	if !ok || len(items) != 0 {
		t.Fatalf("expected empty array, got %v", body["data"])
	}
}

func TestHandler_CheckLiveStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	live := livestatus.NewResult()
	live.Statuses["anayayumi"] = livestatus.Status{IsLive: true, UserName: "anayayumi", ViewerCount: 309}
	env.live.
		On("FetchLiveStatus", mock.Anything, []string{"anayayumi", "naughty"}).
		Return(live, nil).
		Once()

	rec, body := env.do(t, http.MethodPost, "/v1/live-status", `{"channels":["anayayumi","https://twitch.tv/Naughty",7]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := dataObject(t, body)
	anaya, _ := data["anayayumi"].(map[string]any)
	if anaya["is_live"] != true || anaya["viewer_count"] != float64(309) {
		t.Fatalf("unexpected anayayumi status: %v", data)
	}
	naughty, _ := data["Naughty"].(map[string]any)
	if naughty == nil || naughty["is_live"] != false {
		t.Fatalf("expected Naughty offline: %v", data)
	}

	rec, _ = env.do(t, http.MethodPost, "/v1/live-status", `{"channels":[]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty channel list, got %d", rec.Code)
	}
}

func TestHandler_RefreshLeaderboardsJob(t *testing.T) {
	t.Parallel()

	unconfigured := newTestEnv(t, RouterConfig{})
	rec, _ := unconfigured.do(t, http.MethodPost, "/v1/internal/jobs/refresh-leaderboards", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without configured token, got %d", rec.Code)
	}

	env := newTestEnv(t, RouterConfig{InternalJobToken: "job-token"})
	rec, _ = env.do(t, http.MethodPost, "/v1/internal/jobs/refresh-leaderboards", "", map[string]string{"X-Internal-Job-Token": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	env.source.
		On("FetchLeaderboard", mock.Anything, leaderboard.PlatformSwitch).
		Return(leaderboard.Snapshot{Platform: leaderboard.PlatformSwitch, Rows: []leaderboard.ScrapedRow{{Rank: 1, Name: "kandy"}}}, nil).
		Once()

	rec, body := env.do(t, http.MethodPost, "/v1/internal/jobs/refresh-leaderboards", `{"platforms":["switch"]}`, map[string]string{"X-Internal-Job-Token": "job-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	results, _ := dataObject(t, body)["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected one refresh result, got %v", body)
	}
	result, _ := results[0].(map[string]any)
	if result["platform"] != "SWITCH" || result["status"] != "success" || result["players"] != float64(1) {
		t.Fatalf("unexpected refresh result: %v", result)
	}
}

func TestHandler_SearchPlayers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{})
	env.source.
		On("FetchLeaderboard", mock.Anything, leaderboard.PlatformPS4).
		Return(leaderboard.Snapshot{Platform: leaderboard.PlatformPS4, Rows: []leaderboard.ScrapedRow{
			{Rank: 1, Name: "ImperialHal"},
			{Rank: 2, Name: "Zeeko"},
		}}, nil).
		Once()

	rec, body := env.do(t, http.MethodGet, "/v1/leaderboards/ps5/players/search?q=hal", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	matches, _ := body["data"].([]any)
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %v", body["data"])
	}

	rec, _ = env.do(t, http.MethodGet, "/v1/leaderboards/ps4/players/search", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", rec.Code)
	}
}

func TestHandler_Healthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, RouterConfig{MetricsEnabled: true})
	rec, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || dataObject(t, body)["status"] != "ok" {
		t.Fatalf("unexpected healthz response: %d %v", rec.Code, body)
	}
}
