package httpapi

import (
	"time"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

const leaderboardSource = "apexlegendsstatus.com"

type leaderboardDTO struct {
	Platform      leaderboard.Platform       `json:"platform"`
	Players       []leaderboard.PlayerRecord `json:"players"`
	TotalPlayers  int                        `json:"total_players"`
	Cached        bool                       `json:"cached"`
	Stale         bool                       `json:"stale"`
	Degraded      bool                       `json:"degraded"`
	DegradedCount int                        `json:"degraded_count"`
	LastUpdated   string                     `json:"last_updated"`
	Source        string                     `json:"source"`
}

type playerMatchDTO struct {
	Player   leaderboard.PlayerRecord `json:"player"`
	Distance int                      `json:"distance"`
}

type overrideDTO struct {
	PlayerName  string         `json:"player_name"`
	Identity    string         `json:"identity"`
	DisplayName string         `json:"display_name,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
	LiveStatus  *liveStatusDTO `json:"live_status,omitempty"`
}

type liveStatusDTO struct {
	IsLive       bool   `json:"is_live"`
	UserName     string `json:"user_name,omitempty"`
	ViewerCount  int    `json:"viewer_count"`
	Game         string `json:"game,omitempty"`
	Title        string `json:"title,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type putOverrideRequest struct {
	Identity    string   `json:"identity" validate:"required,max=512"`
	DisplayName string   `json:"display_name" validate:"omitempty,max=100"`
	Aliases     []string `json:"aliases" validate:"omitempty,max=20,dive,required,max=100"`
}

type createOverrideRequest struct {
	PlayerName     string   `json:"player_name" validate:"required,max=100"`
	TwitchUsername string   `json:"twitch_username" validate:"required,max=512"`
	DisplayName    string   `json:"display_name" validate:"omitempty,max=100"`
	KnownNames     []string `json:"known_names" validate:"omitempty,max=20,dive,required,max=100"`
}

type liveStatusRequest struct {
	Channels []any `json:"channels" validate:"required,min=1,max=500"`
}

type refreshLeaderboardsRequest struct {
	Platforms []string `json:"platforms" validate:"omitempty,max=8,dive,required"`
}

type refreshLeaderboardsDTO struct {
	Results []usecase.RefreshResult `json:"results"`
}

func boardToDTO(board leaderboard.Board, cached bool) leaderboardDTO {
	players := board.Players
	if players == nil {
		players = []leaderboard.PlayerRecord{}
	}
	return leaderboardDTO{
		Platform:      board.Platform,
		Players:       players,
		TotalPlayers:  board.TotalPlayers,
		Cached:        cached,
		Stale:         board.Stale,
		Degraded:      board.Degraded,
		DegradedCount: board.DegradedCount,
		LastUpdated:   formatTime(board.FetchedAt),
		Source:        leaderboardSource,
	}
}

func matchesToDTO(matches []usecase.PlayerMatch) []playerMatchDTO {
	out := make([]playerMatchDTO, 0, len(matches))
	for _, match := range matches {
		out = append(out, playerMatchDTO{Player: match.Player, Distance: match.Distance})
	}
	return out
}

func overrideToDTO(entry override.Entry) overrideDTO {
	return overrideDTO{
		PlayerName:  entry.PlayerName,
		Identity:    entry.Identity,
		DisplayName: entry.DisplayName,
		Aliases:     entry.Aliases,
		CreatedAt:   formatTime(entry.CreatedAt),
		UpdatedAt:   formatTime(entry.UpdatedAt),
	}
}

func liveStatusToDTO(status livestatus.Status) liveStatusDTO {
	return liveStatusDTO{
		IsLive:       status.IsLive,
		UserName:     status.UserName,
		ViewerCount:  status.ViewerCount,
		Game:         status.Game,
		Title:        status.Title,
		StartedAt:    formatTime(status.StartedAt),
		ThumbnailURL: status.ThumbnailURL,
	}
}

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
