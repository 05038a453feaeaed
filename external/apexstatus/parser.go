package apexstatus

import (
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"
	"golang.org/x/net/html"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/identity"
)

const (
	// MaxRank is the deepest rank the live ranked board publishes.
	MaxRank = 500

	minCellsPerRow     = 3
	playerCellMinChars = 10
	pointsFloor        = 10000
)

var (
	rankPattern   = regexp.MustCompile(`#?(\d+)`)
	levelPattern  = regexp.MustCompile(`Lvl\s*(\d+)`)
	numberPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)

	statusTextPattern = regexp.MustCompile(`(?i)^(In\s+(lobby|match)|Offline|Playing|History|Performance|Lvl\s*\d+|\d+\s*RP\s+away|twitch\.tv|IN-MATCH|IN LOBBY|OFFLINE)`)

	// Suffixes the site glues onto names when the status badge has no
	// whitespace around it. Order matters: compound forms go first.
	statusSuffixes = []string{"InMatch", "InLobby", "Offline", "Lobby", "In", "Match", "Playing", "History", "Performance"}

	gluedSuffixPatterns      = compileSuffixPatterns(`%s$`)
	underscoreSuffixPatterns = compileSuffixPatterns(`(?i)_%s$`)
)

func compileSuffixPatterns(format string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(statusSuffixes))
	for _, suffix := range statusSuffixes {
		out = append(out, regexp.MustCompile(strings.Replace(format, "%s", regexp.QuoteMeta(suffix), 1)))
	}
	return out
}

// StripStatusSuffix removes status words the page glued onto a player name,
// such as "ZeekoInMatch" or "zeeko_offline". A bare lowercase tail like the
// "in" of "Marvin" is left alone. The name is returned unchanged if stripping
// would empty it.
func StripStatusSuffix(name string) string {
	out := strings.TrimSpace(name)
	for i, suffix := range statusSuffixes {
		var next string
		switch {
		case underscoreSuffixPatterns[i].MatchString(out):
			next = underscoreSuffixPatterns[i].ReplaceAllString(out, "")
		case suffix != "In" && gluedSuffixPatterns[i].MatchString(out):
			next = gluedSuffixPatterns[i].ReplaceAllString(out, "")
		default:
			continue
		}
		if strings.TrimSpace(next) == "" {
			continue
		}
		out = strings.TrimSpace(next)
	}
	return out
}

// ParseLeaderboard extracts ranked rows from the live leaderboard page.
// Rows without a usable rank, name or point total are skipped. The result is
// ordered by rank, unique per rank and holds at most maxPlayers rows.
func ParseLeaderboard(r io.Reader, maxPlayers int) ([]leaderboard.ScrapedRow, error) {
	if maxPlayers <= 0 || maxPlayers > MaxRank {
		maxPlayers = MaxRank
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, crerr.Wrap(err, "parse leaderboard html")
	}

	table := doc.Find("table#liveTable").First()
	if table.Length() == 0 {
		table = doc.Find("table").First()
	}
	if table.Length() == 0 {
		return nil, crerr.New("leaderboard table not found")
	}

	rows := make([]leaderboard.ScrapedRow, 0, maxPlayers)
	seenRanks := make(map[int]struct{}, maxPlayers)
	table.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		row, ok := parseRow(tr)
		if !ok {
			return true
		}
		if _, dup := seenRanks[row.Rank]; dup {
			return true
		}
		seenRanks[row.Rank] = struct{}{}
		rows = append(rows, row)
		return len(rows) < maxPlayers
	})

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	return rows, nil
}

func parseRow(tr *goquery.Selection) (leaderboard.ScrapedRow, bool) {
	cells := tr.ChildrenFiltered("td")
	if cells.Length() < minCellsPerRow {
		return leaderboard.ScrapedRow{}, false
	}

	rank := parseRank(cells)
	if rank < 1 || rank > MaxRank {
		return leaderboard.ScrapedRow{}, false
	}

	playerIdx := findPlayerCell(cells)
	if playerIdx < 0 {
		return leaderboard.ScrapedRow{}, false
	}
	playerCell := cells.Eq(playerIdx)

	rawIdentity, username := findIdentityLink(playerCell)
	name := extractPlayerName(playerCell)
	if name == "" {
		name = username
	}
	if name == "" {
		return leaderboard.ScrapedRow{}, false
	}

	statusText := spacedText(playerCell)
	points, change := parsePoints(cells, playerIdx)
	if points <= 0 {
		return leaderboard.ScrapedRow{}, false
	}

	return leaderboard.ScrapedRow{
		Rank:            rank,
		Name:            name,
		Points:          points,
		PointsChange24h: change,
		Level:           parseLevel(statusText),
		RawIdentity:     rawIdentity,
		Status:          parseStatus(statusText),
	}, true
}

func parseRank(cells *goquery.Selection) int {
	limit := minInt(cells.Length(), 3)
	for i := 0; i < limit; i++ {
		match := rankPattern.FindStringSubmatch(strippedText(cells.Eq(i)))
		if match == nil {
			continue
		}
		rank, err := strconv.Atoi(match[1])
		if err != nil {
			return 0
		}
		return rank
	}
	return 0
}

func findPlayerCell(cells *goquery.Selection) int {
	for i := 0; i < cells.Length(); i++ {
		cell := cells.Eq(i)
		if cell.Find("a").Length() > 0 || len([]rune(strippedText(cell))) > playerCellMinChars {
			return i
		}
	}
	return -1
}

func isTwitchHref(href string) bool {
	return strings.Contains(href, "twitch.tv") || strings.Contains(href, "apexlegendsstatus.com/core/out?type=twitch")
}

// findIdentityLink returns the first streaming link in the cell that yields a
// channel name. The href is kept verbatim; canonicalization happens later.
func findIdentityLink(cell *goquery.Selection) (string, string) {
	var href, username string
	cell.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		value, _ := a.Attr("href")
		value = strings.TrimSpace(value)
		if !isTwitchHref(value) {
			return true
		}
		parsed := identity.Parse(value)
		if parsed.IsZero() {
			return true
		}
		href, username = value, parsed.Username
		return false
	})
	return href, username
}

func extractPlayerName(cell *goquery.Selection) string {
	if name := strippedText(cell.Find("strong").First()); acceptableName(name) {
		return name
	}

	var name string
	cell.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if isTwitchHref(href) {
			return true
		}
		if text := strippedText(a); acceptableName(text) {
			name = text
			return false
		}
		return true
	})
	if name != "" {
		return name
	}

	cell.Find("span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := StripStatusSuffix(strippedText(s))
		if acceptableName(text) && !statusTextPattern.MatchString(text) {
			name = text
			return false
		}
		return true
	})
	if name != "" {
		return name
	}

	for _, chunk := range textChunks(cell) {
		if statusTextPattern.MatchString(chunk) {
			continue
		}
		if text := StripStatusSuffix(chunk); acceptableName(text) {
			return text
		}
	}
	return ""
}

// acceptableName rejects blanks and the site's placeholder names.
func acceptableName(name string) bool {
	lower := strings.ToLower(name)
	return name != "" && !strings.HasPrefix(lower, "player") && !strings.HasPrefix(lower, "predator")
}

func parseStatus(text string) leaderboard.Status {
	switch {
	case strings.Contains(text, "In lobby"):
		return leaderboard.StatusInLobby
	case strings.Contains(text, "In match"):
		return leaderboard.StatusInMatch
	case strings.Contains(text, "Offline"):
		return leaderboard.StatusOffline
	default:
		return leaderboard.StatusUnknown
	}
}

func parseLevel(text string) int {
	match := levelPattern.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	level, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return level
}

// parsePoints takes the first cell holding a number above pointsFloor: the
// largest such number is the point total and the largest remaining one is
// the 24h change. The player cell is only consulted last since its level and
// name digits would otherwise win.
func parsePoints(cells *goquery.Selection, playerIdx int) (int64, int64) {
	order := make([]int, 0, cells.Length())
	for i := 0; i < cells.Length(); i++ {
		if i != playerIdx {
			order = append(order, i)
		}
	}
	order = append(order, playerIdx)

	for _, i := range order {
		numbers := extractNumbers(spacedText(cells.Eq(i)))
		var points int64
		for _, n := range numbers {
			if n > pointsFloor && n > points {
				points = n
			}
		}
		if points == 0 {
			continue
		}
		var change int64
		for _, n := range numbers {
			if n != points && n > change {
				change = n
			}
		}
		return points, change
	}
	return 0, 0
}

func extractNumbers(text string) []int64 {
	matches := numberPattern.FindAllString(text, -1)
	out := make([]int64, 0, len(matches))
	for _, match := range matches {
		n, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// textChunks returns every non-blank text node under the selection, trimmed,
// in document order.
func textChunks(sel *goquery.Selection) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				out = append(out, text)
			}
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, node := range sel.Nodes {
		walk(node)
	}
	return out
}

func strippedText(sel *goquery.Selection) string {
	return strings.Join(textChunks(sel), "")
}

func spacedText(sel *goquery.Selection) string {
	return strings.Join(textChunks(sel), " ")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
