package leaderboard

import (
	"fmt"
	"strings"
	"time"
)

// Platform is one of the ranked leaderboards published by the scrape source.
type Platform string

const (
	PlatformPC     Platform = "PC"
	PlatformPS4    Platform = "PS4"
	PlatformXbox   Platform = "X1"
	PlatformSwitch Platform = "SWITCH"
)

func Platforms() []Platform {
	return []Platform{PlatformPC, PlatformPS4, PlatformXbox, PlatformSwitch}
}

// ParsePlatform accepts the canonical codes plus a few common aliases.
func ParsePlatform(raw string) (Platform, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PC":
		return PlatformPC, nil
	case "PS4", "PS5", "PLAYSTATION":
		return PlatformPS4, nil
	case "X1", "XBOX":
		return PlatformXbox, nil
	case "SWITCH":
		return PlatformSwitch, nil
	default:
		return "", fmt.Errorf("unknown platform %q", raw)
	}
}

// Status is the player's in-game state as shown on the board. Live overrides
// whatever the scrape reported once the stream is confirmed.
type Status string

const (
	StatusLive    Status = "Live"
	StatusInMatch Status = "In-match"
	StatusInLobby Status = "In-lobby"
	StatusOffline Status = "Offline"
	StatusUnknown Status = "Unknown"
)

// ScrapedRow is one leaderboard row exactly as the source reported it.
type ScrapedRow struct {
	Rank            int
	Name            string
	Points          int64
	PointsChange24h int64
	Level           int
	RawIdentity     string
	Status          Status
}

type Snapshot struct {
	Platform  Platform
	Rows      []ScrapedRow
	ScrapedAt time.Time
}

// Stream is present on a record only while the channel is confirmed live.
type Stream struct {
	UserName     string    `json:"user_name"`
	ViewerCount  int       `json:"viewer_count"`
	Game         string    `json:"game"`
	Title        string    `json:"title"`
	StartedAt    time.Time `json:"started_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

// PlayerRecord is a reconciled leaderboard row.
type PlayerRecord struct {
	Rank            int     `json:"rank"`
	Name            string  `json:"name"`
	Points          int64   `json:"points"`
	PointsChange24h int64   `json:"points_change_24h"`
	Level           int     `json:"level"`
	RawIdentity     string  `json:"raw_identity,omitempty"`
	Identity        string  `json:"identity,omitempty"`
	IsLive          bool    `json:"is_live"`
	Stream          *Stream `json:"stream,omitempty"`
	Status          Status  `json:"status"`
	Degraded        bool    `json:"degraded,omitempty"`
	OverrideApplied bool    `json:"override_applied,omitempty"`
}

// Scope identifies one cacheable leaderboard view.
type Scope struct {
	Platform Platform
	Limit    int
}

const ScopeKeyPrefix = "leaderboard:"

func (s Scope) Key() string {
	return fmt.Sprintf("%s%s:limit=%d", ScopeKeyPrefix, s.Platform, s.Limit)
}

// Board is what the serving layer hands out for a scope.
type Board struct {
	Platform      Platform       `json:"platform"`
	Players       []PlayerRecord `json:"players"`
	TotalPlayers  int            `json:"total_players"`
	FetchedAt     time.Time      `json:"fetched_at"`
	Degraded      bool           `json:"degraded"`
	DegradedCount int            `json:"degraded_count"`
	Stale         bool           `json:"stale"`
}
