package resolver

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// Plan is the outcome of one matching pass, before anything is written.
type Plan struct {
	Assignments []model.Assignment

	// SharedGames lists games that attracted more than one new ticker in
	// this pass, with the tickers involved. All of them are still assigned;
	// the duplication is a data-quality signal, not an error.
	SharedGames map[uuid.UUID][]string

	// Ambiguous lists tickers whose predicate matched more than one game
	// (doubleheaders, registry duplicates). Those are skipped: a wrong
	// assignment is worse than a late one.
	Ambiguous []string

	// Unmatched counts candidates that found no game this pass.
	Unmatched int

	// BadSlugs counts registry games whose slug did not parse.
	BadSlugs int
}

// planMatches joins unmatched live markets against active registry games.
// Two passes: the strict two-team predicate (sport, date, away and home
// codes all equal), then the relaxed single-team predicate (lone code in
// either slot). Markets are processed in ticker order so reruns over the
// same inputs produce the same plan.
func planMatches(markets []model.Market, games []model.Game) Plan {
	plan := Plan{SharedGames: map[uuid.UUID][]string{}}

	twoTeam := make(map[string][]uuid.UUID)
	byCode := make(map[string][]uuid.UUID)
	for _, g := range games {
		slug, ok := model.ParseGameSlug(g.Slug)
		if !ok {
			plan.BadSlugs++
			continue
		}
		twoTeam[pairKey(slug.Sport, slug.Date, slug.AwayCode, slug.HomeCode)] =
			append(twoTeam[pairKey(slug.Sport, slug.Date, slug.AwayCode, slug.HomeCode)], g.ID)
		byCode[codeKey(slug.Sport, slug.Date, slug.AwayCode)] =
			append(byCode[codeKey(slug.Sport, slug.Date, slug.AwayCode)], g.ID)
		byCode[codeKey(slug.Sport, slug.Date, slug.HomeCode)] =
			append(byCode[codeKey(slug.Sport, slug.Date, slug.HomeCode)], g.ID)
	}

	ordered := make([]model.Market, len(markets))
	copy(ordered, markets)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ticker < ordered[j].Ticker })

	perGame := make(map[uuid.UUID][]string)
	assign := func(id uuid.UUID, ticker string) {
		plan.Assignments = append(plan.Assignments, model.Assignment{Ticker: ticker, GameID: id})
		perGame[id] = append(perGame[id], ticker)
	}

	// Pass 1: two-team markets, strict predicate.
	for _, m := range ordered {
		if m.SingleTeam() {
			continue
		}
		if m.AwayCode == "" || m.HomeCode == "" || m.GameDate.IsZero() {
			plan.Unmatched++
			continue
		}
		ids := twoTeam[pairKey(m.Sport, m.GameDate, m.AwayCode, m.HomeCode)]
		switch len(ids) {
		case 0:
			plan.Unmatched++
		case 1:
			assign(ids[0], m.Ticker)
		default:
			plan.Ambiguous = append(plan.Ambiguous, m.Ticker)
		}
	}

	// Pass 2: single-team markets, relaxed predicate. Kept separate so the
	// lone-code rule can never satisfy a two-team lookup by accident.
	for _, m := range ordered {
		if !m.SingleTeam() {
			continue
		}
		if m.GameDate.IsZero() {
			plan.Unmatched++
			continue
		}
		ids := byCode[codeKey(m.Sport, m.GameDate, m.SingleCode)]
		switch len(ids) {
		case 0:
			plan.Unmatched++
		case 1:
			assign(ids[0], m.Ticker)
		default:
			plan.Ambiguous = append(plan.Ambiguous, m.Ticker)
		}
	}

	for id, tickers := range perGame {
		if len(tickers) > 1 {
			plan.SharedGames[id] = tickers
		}
	}

	return plan
}

func pairKey(sport string, date time.Time, away, home string) string {
	return strings.ToLower(sport) + "|" + date.Format("2006-01-02") + "|" +
		strings.ToUpper(away) + "|" + strings.ToUpper(home)
}

func codeKey(sport string, date time.Time, code string) string {
	return strings.ToLower(sport) + "|" + date.Format("2006-01-02") + "|" + strings.ToUpper(code)
}
