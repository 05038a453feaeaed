package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	livestatusmock "github.com/riskibarqy/apex-leaderboard/internal/mocks/domain/livestatus"
	overridemock "github.com/riskibarqy/apex-leaderboard/internal/mocks/domain/override"
	"github.com/stretchr/testify/mock"
)

func TestOverrideService_Put_NormalizesAndProbes(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), "trace_id", "trace-789")
	repo := overridemock.NewRepository(t)
	live := livestatusmock.NewFetcher(t)
	service := NewOverrideService(repo, live, time.Second, nil)

	want := override.Entry{PlayerName: "LG_Naughty", Identity: "https://twitch.tv/Naughty", DisplayName: "Naughty"}
	repo.
		On("Put", mock.Anything, want).
		Return(want, nil).
		Once()
	live.
		On("FetchLiveStatus", mock.Anything, []string{"naughty"}).
		Return(liveResult(map[string]livestatus.Status{"naughty": {IsLive: true, UserName: "Naughty", ViewerCount: 250}}), nil).
		Once()

	got, err := service.Put(ctx, PutOverrideInput{PlayerName: "  LG_Naughty ", Identity: "twitch.tv/Naughty", DisplayName: " Naughty "})
	if err != nil {
		t.Fatalf("put override: %v", err)
	}
	if got.Entry.Identity != "https://twitch.tv/Naughty" {
		t.Fatalf("unexpected identity: %s", got.Entry.Identity)
	}
	if got.LiveStatus == nil || !got.LiveStatus.IsLive || got.LiveStatus.ViewerCount != 250 {
		t.Fatalf("expected live probe result: %+v", got.LiveStatus)
	}
}

func TestOverrideService_Put_NormalizesAliases(t *testing.T) {
	t.Parallel()

	repo := overridemock.NewRepository(t)
	live := livestatusmock.NewFetcher(t)
	service := NewOverrideService(repo, live, time.Second, nil)

	want := override.Entry{
		PlayerName: "ImperialHal",
		Identity:   "https://twitch.tv/tsm_imperialhal",
		Aliases:    []string{"TSM_Hal", "Hal2"},
	}
	repo.
		On("Put", mock.Anything, want).
		Return(want, nil).
		Once()
	live.
		On("FetchLiveStatus", mock.Anything, []string{"tsm_imperialhal"}).
		Return(liveResult(nil), nil).
		Once()

	got, err := service.Put(context.Background(), PutOverrideInput{
		PlayerName: "ImperialHal",
		Identity:   "tsm_imperialhal",
		Aliases:    []string{" TSM_Hal ", "tsm_hal", "", "imperialhal", "Hal2"},
	})
	if err != nil {
		t.Fatalf("put override: %v", err)
	}
	if len(got.Entry.Aliases) != 2 {
		t.Fatalf("unexpected aliases: %v", got.Entry.Aliases)
	}
}

func TestOverrideService_Put_ProbeFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	repo := overridemock.NewRepository(t)
	live := livestatusmock.NewFetcher(t)
	service := NewOverrideService(repo, live, time.Second, nil)

	repo.
		On("Put", mock.Anything, mock.AnythingOfType("override.Entry")).
		Return(func(_ context.Context, entry override.Entry) (override.Entry, error) { return entry, nil }).
		Once()
	live.
		On("FetchLiveStatus", mock.Anything, []string{"zeeko_ttv"}).
		Return(livestatus.Result{}, errors.New("helix down")).
		Once()

	got, err := service.Put(context.Background(), PutOverrideInput{PlayerName: "Zeeko", Identity: "zeeko_ttv"})
	if err != nil {
		t.Fatalf("put override: %v", err)
	}
	if got.LiveStatus != nil {
		t.Fatalf("expected no live status after failed probe: %+v", got.LiveStatus)
	}
	if got.Entry.Identity != "https://twitch.tv/zeeko_ttv" {
		t.Fatalf("unexpected identity: %s", got.Entry.Identity)
	}
}

func TestOverrideService_Put_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	service := NewOverrideService(overridemock.NewRepository(t), livestatusmock.NewFetcher(t), 0, nil)

	cases := map[string]PutOverrideInput{
		"missing player":   {Identity: "twitch.tv/x"},
		"missing identity": {PlayerName: "x"},
		"unusable link":    {PlayerName: "x", Identity: "https://twitch.tv/"},
		"off domain link":  {PlayerName: "x", Identity: "https://wrong.site.com/badlink"},
	}
	for name, input := range cases {
		if _, err := service.Put(context.Background(), input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestOverrideService_GetAndDelete_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := overridemock.NewRepository(t)
	service := NewOverrideService(repo, nil, 0, nil)

	repo.On("Get", ctx, "ghost").Return(override.Entry{}, false, nil).Once()
	repo.On("Delete", mock.Anything, "ghost").Return(false, nil).Once()

	if _, err := service.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on get, got %v", err)
	}
	if err := service.Delete(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestOverrideService_List_SortedByKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := overridemock.NewRepository(t)
	service := NewOverrideService(repo, nil, 0, nil)

	repo.
		On("List", ctx).
		Return([]override.Entry{{PlayerName: "zeeko"}, {PlayerName: "ImperialHal"}, {PlayerName: "aceu"}}, nil).
		Once()

	items, err := service.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].PlayerName != "aceu" || items[1].PlayerName != "ImperialHal" || items[2].PlayerName != "zeeko" {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestOverrideService_CheckLiveStatus_KeysByUsername(t *testing.T) {
	t.Parallel()

	live := livestatusmock.NewFetcher(t)
	service := NewOverrideService(overridemock.NewRepository(t), live, 0, nil)

	live.
		On("FetchLiveStatus", mock.Anything, []string{"anayayumi", "naughty", "down_one"}).
		Return(liveResult(map[string]livestatus.Status{
			"anayayumi": {IsLive: true, ViewerCount: 309},
		}, "down_one"), nil).
		Once()

	got, err := service.CheckLiveStatus(context.Background(), []any{
		"anayayumi",
		"https://www.twitch.tv/Naughty",
		"twitch.tv/naughty",
		42,
		nil,
		"down_one",
	})
	if err != nil {
		t.Fatalf("check live status: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 answered channels, got %+v", got)
	}
	if !got["anayayumi"].IsLive || got["anayayumi"].ViewerCount != 309 {
		t.Fatalf("unexpected anayayumi status: %+v", got["anayayumi"])
	}
	if status, ok := got["Naughty"]; !ok || status.IsLive {
		t.Fatalf("expected Naughty reported offline: %+v ok=%v", status, ok)
	}
}
