package usecase

import (
	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/identity"
)

// OverrideIndex maps override.NormalizeKey of a player name or alias to the
// entry it resolves to.
type OverrideIndex map[string]override.Entry

// IndexOverrides keeps the most recently updated entry per key; on equal
// timestamps the later element wins. A name that is some entry's PlayerName
// always resolves to that entry, never to another entry's alias.
func IndexOverrides(entries []override.Entry) OverrideIndex {
	index := make(OverrideIndex, len(entries))
	for _, entry := range entries {
		indexEntry(index, entry.Key(), entry)
	}

	primary := make(map[string]struct{}, len(index))
	for key := range index {
		primary[key] = struct{}{}
	}
	aliases := make(OverrideIndex)
	for _, entry := range entries {
		if entry.Key() == "" {
			continue
		}
		for _, alias := range entry.Aliases {
			key := override.NormalizeKey(alias)
			if _, taken := primary[key]; taken {
				continue
			}
			indexEntry(aliases, key, entry)
		}
	}
	for key, entry := range aliases {
		index[key] = entry
	}
	return index
}

func indexEntry(index OverrideIndex, key string, entry override.Entry) {
	if key == "" {
		return
	}
	if current, ok := index[key]; ok && current.UpdatedAt.After(entry.UpdatedAt) {
		return
	}
	index[key] = entry
}

type resolvedIdentity struct {
	raw         string
	identity    identity.Identity
	displayName string
	override    bool
}

func resolveIdentity(row leaderboard.ScrapedRow, overrides OverrideIndex) resolvedIdentity {
	out := resolvedIdentity{raw: row.RawIdentity, identity: identity.Parse(row.RawIdentity)}

	entry, ok := overrides[override.NormalizeKey(row.Name)]
	if !ok {
		return out
	}
	out.displayName = entry.DisplayName

	if parsed := identity.Parse(entry.Identity); !parsed.IsZero() {
		out.raw = entry.Identity
		out.identity = parsed
		out.override = true
	}
	return out
}

// CollectIdentityKeys lists the distinct identity keys that need a live-status
// lookup, in board order.
func CollectIdentityKeys(rows []leaderboard.ScrapedRow, overrides OverrideIndex) []string {
	seen := make(map[string]struct{}, len(rows))
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		key := resolveIdentity(row, overrides).identity.Key()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// Reconcile merges scraped rows with overrides and live status. It does not
// reorder, renumber or drop rows, and it returns the same output for the same
// inputs.
//
// Precedence per row: an override's identity beats the scraped one; a
// confirmed live stream forces StatusLive; otherwise the scraped in-game
// status stands. Rows whose batch failed keep their scraped status and are
// flagged Degraded.
func Reconcile(rows []leaderboard.ScrapedRow, overrides OverrideIndex, live livestatus.Result) []leaderboard.PlayerRecord {
	records := make([]leaderboard.PlayerRecord, 0, len(rows))
	for _, row := range rows {
		resolved := resolveIdentity(row, overrides)

		record := leaderboard.PlayerRecord{
			Rank:            row.Rank,
			Name:            row.Name,
			Points:          row.Points,
			PointsChange24h: row.PointsChange24h,
			Level:           row.Level,
			RawIdentity:     resolved.raw,
			Identity:        resolved.identity.URL,
			Status:          scrapedStatus(row.Status),
			OverrideApplied: resolved.override,
		}
		if resolved.displayName != "" {
			record.Name = resolved.displayName
		}

		key := resolved.identity.Key()
		if key == "" {
			records = append(records, record)
			continue
		}

		if status, ok := live.Lookup(key); ok && status.IsLive {
			record.IsLive = true
			record.Status = leaderboard.StatusLive
			record.Stream = &leaderboard.Stream{
				UserName:     status.UserName,
				ViewerCount:  status.ViewerCount,
				Game:         status.Game,
				Title:        status.Title,
				StartedAt:    status.StartedAt,
				ThumbnailURL: status.ThumbnailURL,
			}
		} else if live.IsDegraded(key) {
			record.Degraded = true
		}

		records = append(records, record)
	}
	return records
}

// scrapedStatus keeps Live reserved for confirmed streams.
func scrapedStatus(status leaderboard.Status) leaderboard.Status {
	switch status {
	case leaderboard.StatusInMatch, leaderboard.StatusInLobby, leaderboard.StatusOffline:
		return status
	default:
		return leaderboard.StatusUnknown
	}
}
