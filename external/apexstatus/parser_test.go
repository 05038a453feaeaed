package apexstatus

import (
	"strings"
	"testing"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
)

const leaderboardFixture = `<!DOCTYPE html>
<html><body>
<table class="summary"><tbody><tr><td>1</td><td>not the board</td><td>999,999</td></tr></tbody></table>
<table id="liveTable">
<thead><tr><th>#</th><th>Player</th><th>RP</th></tr></thead>
<tbody>
<tr>
  <td>#2</td>
  <td>
    <a href="https://apexlegendsstatus.com/profile/uid/PC/1"><strong>ImperialHal</strong></a>
    <span>In match</span><span>Lvl 1500</span>
    <a href="https://apexlegendsstatus.com/core/out?type=twitch&amp;id=tsm_imperialhal">twitch.tv</a>
  </td>
  <td>152,300 <span>+4,210</span></td>
</tr>
<tr>
  <td>1</td>
  <td>
    <strong>LG_Naughty</strong>
    <a href="https://www.twitch.tv/Naughty">twitch</a>
    <span>In lobby</span><span>Lvl 3000</span>
  </td>
  <td>200,000 <span>+1,000</span></td>
</tr>
<tr>
  <td>3</td>
  <td><div>ZeekoOffline</div><span>Offline</span></td>
  <td>150000</td>
</tr>
<tr>
  <td>#2</td>
  <td><strong>Impostor</strong><span>In match</span></td>
  <td>151,000</td>
</tr>
<tr>
  <td>4</td>
  <td><a href="https://twitch.tv/only_stream">twitch.tv/only_stream</a></td>
  <td>120,500 +300</td>
</tr>
<tr><td>5</td><td>too few cells</td></tr>
<tr>
  <td>6</td>
  <td><strong>Predator6</strong><span>In lobby</span></td>
  <td>110,000</td>
</tr>
<tr>
  <td>7</td>
  <td><strong>LowPointsPlayer</strong> <span>Offline</span></td>
  <td>9,999</td>
</tr>
<tr>
  <td>501</td>
  <td><strong>OffTheBoard</strong></td>
  <td>100,000</td>
</tr>
</tbody>
</table>
</body></html>`

func TestParseLeaderboard_ExtractsRows(t *testing.T) {
	t.Parallel()

	rows, err := ParseLeaderboard(strings.NewReader(leaderboardFixture), 500)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []leaderboard.ScrapedRow{
		{Rank: 1, Name: "LG_Naughty", Points: 200000, PointsChange24h: 1000, Level: 3000, RawIdentity: "https://www.twitch.tv/Naughty", Status: leaderboard.StatusInLobby},
		{Rank: 2, Name: "ImperialHal", Points: 152300, PointsChange24h: 4210, Level: 1500, RawIdentity: "https://apexlegendsstatus.com/core/out?type=twitch&id=tsm_imperialhal", Status: leaderboard.StatusInMatch},
		{Rank: 3, Name: "Zeeko", Points: 150000, Status: leaderboard.StatusOffline},
		{Rank: 4, Name: "only_stream", Points: 120500, PointsChange24h: 300, RawIdentity: "https://twitch.tv/only_stream", Status: leaderboard.StatusUnknown},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(rows), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d mismatch:\n got %+v\nwant %+v", i, rows[i], want[i])
		}
	}
}

func TestParseLeaderboard_CapsAtMaxPlayers(t *testing.T) {
	t.Parallel()

	rows, err := ParseLeaderboard(strings.NewReader(leaderboardFixture), 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 || rows[0].Rank != 1 || rows[1].Rank != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestParseLeaderboard_FallsBackToFirstTable(t *testing.T) {
	t.Parallel()

	page := `<table><tbody>
<tr><td>1</td><td><strong>Solo</strong><span>Offline</span></td><td>88,000</td></tr>
</tbody></table>`
	rows, err := ParseLeaderboard(strings.NewReader(page), 10)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Solo" || rows[0].Points != 88000 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestParseLeaderboard_NoTable(t *testing.T) {
	t.Parallel()

	if _, err := ParseLeaderboard(strings.NewReader("<html><body><p>maintenance</p></body></html>"), 10); err == nil {
		t.Fatalf("expected error when the page has no table")
	}
}

func TestStripStatusSuffix(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ZeekoInMatch":    "Zeeko",
		"ZeekoInLobby":    "Zeeko",
		"zeeko_offline":   "zeeko",
		"Zeeko_In":        "Zeeko",
		"HalPlaying":      "Hal",
		"Marvin":          "Marvin",
		"Offline":         "Offline",
		"  Spaced  ":      "Spaced",
		"NoSuffixHere":    "NoSuffixHere",
		"Snip3down_Lobby": "Snip3down",
	}
	for input, want := range cases {
		if got := StripStatusSuffix(input); got != want {
			t.Errorf("StripStatusSuffix(%q) = %q, want %q", input, got, want)
		}
	}
}
