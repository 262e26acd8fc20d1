package tickerid

import (
	"regexp"
	"strings"
	"time"
)

// Parsed is the structured identity extracted from an exchange ticker.
// Game markets carry both team codes; single-team markets carry only
// SingleCode, and the away/home slot is decided later by the resolver.
type Parsed struct {
	Sport      string    // Lower-case sport key ("nba", "nfl", ...)
	GameDate   time.Time // Date-only, midnight UTC
	AwayCode   string    // First half of the team block
	HomeCode   string    // Second half of the team block
	SingleCode string    // Lone code of the single-team variant
}

// SingleTeam reports whether the parsed identity is the single-team variant.
func (p Parsed) SingleTeam() bool {
	return p.SingleCode != ""
}

var (
	// Game series look like KXNBAGAME, KXNHLGAME, KXNFLGAME.
	gameSeriesRe = regexp.MustCompile(`^KX([A-Z]+)GAME$`)

	// Event token: YYMONDD date followed by the concatenated team block.
	eventTokenRe = regexp.MustCompile(`^(\d{2})(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)(\d{2})([A-Z]{4,7})$`)

	yearTokenRe = regexp.MustCompile(`^\d{2}$`)
	loneCodeRe  = regexp.MustCompile(`^[A-Z]{2,4}$`)
)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// singleTeamSeries maps championship-style series to their sport. These
// tickers name one team and no opponent (e.g., KXSB-26-SEA).
var singleTeamSeries = map[string]string{
	"KXSB": "nfl",
}

// Parse extracts the structured identity from an exchange ticker. closeTime
// is the market's close time, consulted only by the single-team grammar
// (its tickers embed a year but no full date). The second return is false
// when the ticker matches no known grammar; that is an expected outcome for
// non-sports tickers, never an error.
func Parse(ticker string, closeTime time.Time) (Parsed, bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(ticker)), "-")

	switch len(parts) {
	case 2:
		// Event-level id without the side suffix.
		if m := gameSeriesRe.FindStringSubmatch(parts[0]); m != nil {
			return parseGameEvent(strings.ToLower(m[1]), parts[1])
		}
	case 3:
		if sport, ok := singleTeamSeries[parts[0]]; ok {
			return parseSingleTeam(sport, parts[1], parts[2], closeTime)
		}
		if m := gameSeriesRe.FindStringSubmatch(parts[0]); m != nil {
			return parseGameEvent(strings.ToLower(m[1]), parts[1])
		}
	}

	return Parsed{}, false
}

// parseGameEvent decodes the YYMONDD date token and the trailing team block
// of a game-market event segment such as "26FEB05CHAHOU".
func parseGameEvent(sport, event string) (Parsed, bool) {
	m := eventTokenRe.FindStringSubmatch(event)
	if m == nil {
		return Parsed{}, false
	}

	date, ok := calendarDate(2000+atoi2(m[1]), months[m[2]], atoi2(m[3]))
	if !ok {
		return Parsed{}, false
	}

	away, home, ok := splitTeamBlock(m[4])
	if !ok {
		return Parsed{}, false
	}

	return Parsed{
		Sport:    sport,
		GameDate: date,
		AwayCode: Alias(away),
		HomeCode: Alias(home),
	}, true
}

// parseSingleTeam decodes the single-team grammar. The game date comes from
// the market close time, except that the close-time year is unreliable for
// this series; the year token embedded in the ticker wins.
func parseSingleTeam(sport, yearTok, code string, closeTime time.Time) (Parsed, bool) {
	if !yearTokenRe.MatchString(yearTok) || !loneCodeRe.MatchString(code) {
		return Parsed{}, false
	}
	if closeTime.IsZero() {
		return Parsed{}, false
	}

	base := closeTime.UTC()
	date := time.Date(2000+atoi2(yearTok), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)

	return Parsed{
		Sport:      sport,
		GameDate:   date,
		SingleCode: Alias(code),
	}, true
}

// splitTeamBlock divides the concatenated away+home block. Code length
// varies by league, so the split depends on block length, most specific
// rule first. First half is always the away team.
func splitTeamBlock(block string) (away, home string, ok bool) {
	switch len(block) {
	case 6:
		return block[:3], block[3:], true
	case 5:
		// 2+3 only when the leading pair is a known away-slot code and the
		// trailing pair is not simultaneously claiming the home slot;
		// everything else falls back to 3+2.
		if awayTwoLetter[block[:2]] && !homeTwoLetter[block[3:]] {
			return block[:2], block[2:], true
		}
		return block[:3], block[3:], true
	case 7:
		return block[:3], block[3:], true
	case 4:
		return block[:2], block[2:], true
	}
	return "", "", false
}

// SideCode returns the trailing side token of a market ticker (the team the
// market pays on), translated through the alias table. Returns "" when the
// ticker has no such token.
func SideCode(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	i := strings.LastIndexByte(t, '-')
	if i < 0 || i == len(t)-1 {
		return ""
	}
	side := t[i+1:]
	if !loneCodeRe.MatchString(side) {
		return ""
	}
	return Alias(side)
}

// calendarDate builds a date-only time and rejects tokens that name a day
// that does not exist (e.g. FEB30), which time.Date would silently roll over.
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// atoi2 converts a two-digit numeric token. Inputs are pre-validated by the
// grammar regexps.
func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
