package override

import (
	"fmt"
	"strings"
	"time"
)

// Entry pins a leaderboard player to a streaming identity chosen by an
// operator. It wins over whatever identity the scrape found. Aliases are
// other in-game names the same player has used; they resolve to this entry
// unless another entry owns that name as its PlayerName.
type Entry struct {
	PlayerName  string
	Identity    string
	DisplayName string
	Aliases     []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key is the lookup key; player names match case-insensitively.
func (e Entry) Key() string {
	return NormalizeKey(e.PlayerName)
}

func NormalizeKey(playerName string) string {
	return strings.ToLower(strings.TrimSpace(playerName))
}

// NormalizeAliases trims the names, drops blanks, duplicates and the player
// name itself, and keeps first-seen order and spelling.
func NormalizeAliases(playerName string, aliases []string) []string {
	seen := map[string]struct{}{NormalizeKey(playerName): {}}
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		key := NormalizeKey(alias)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, alias)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.PlayerName) == "" {
		return fmt.Errorf("player name is required")
	}
	if strings.TrimSpace(e.Identity) == "" {
		return fmt.Errorf("identity is required")
	}
	return nil
}
