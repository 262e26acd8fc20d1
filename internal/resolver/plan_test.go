package resolver

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gamelinehq/marketfeed/internal/model"
)

func gameMarket(ticker, sport, away, home string, date time.Time) model.Market {
	return model.Market{
		Ticker:   ticker,
		Status:   model.StatusOpen,
		Sport:    sport,
		AwayCode: away,
		HomeCode: home,
		GameDate: date,
	}
}

func singleMarket(ticker, sport, code string, date time.Time) model.Market {
	return model.Market{
		Ticker:     ticker,
		Status:     model.StatusOpen,
		Sport:      sport,
		SingleCode: code,
		GameDate:   date,
	}
}

var feb5 = time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC)

func TestPlanMatchesTwoTeam(t *testing.T) {
	gid := uuid.New()
	games := []model.Game{{ID: gid, Sport: "nba", Slug: "nba-cha-hou-2026-02-05"}}
	markets := []model.Market{
		gameMarket("KXNBAGAME-26FEB05CHAHOU-HOU", "nba", "CHA", "HOU", feb5),
	}

	plan := planMatches(markets, games)

	if len(plan.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1", len(plan.Assignments))
	}
	a := plan.Assignments[0]
	if a.Ticker != "KXNBAGAME-26FEB05CHAHOU-HOU" || a.GameID != gid {
		t.Errorf("assignment = %+v, want ticker→%s", a, gid)
	}
	if plan.Unmatched != 0 {
		t.Errorf("unmatched = %d, want 0", plan.Unmatched)
	}
}

func TestPlanMatchesCaseInsensitiveSport(t *testing.T) {
	gid := uuid.New()
	games := []model.Game{{ID: gid, Sport: "nba", Slug: "NBA-cha-hou-2026-02-05"}}
	markets := []model.Market{
		gameMarket("KXNBAGAME-26FEB05CHAHOU-HOU", "NBA", "CHA", "HOU", feb5),
	}

	plan := planMatches(markets, games)
	if len(plan.Assignments) != 1 {
		t.Fatalf("got %d assignments, want 1 (sport should compare case-insensitively)", len(plan.Assignments))
	}
}

func TestPlanMatchesRequiresAllPredicates(t *testing.T) {
	games := []model.Game{{ID: uuid.New(), Sport: "nba", Slug: "nba-cha-hou-2026-02-05"}}

	tests := []struct {
		name   string
		market model.Market
	}{
		{"wrong date", gameMarket("T1", "nba", "CHA", "HOU", feb5.AddDate(0, 0, 1))},
		{"wrong sport", gameMarket("T2", "nhl", "CHA", "HOU", feb5)},
		{"swapped slots", gameMarket("T3", "nba", "HOU", "CHA", feb5)},
		{"wrong team", gameMarket("T4", "nba", "DAL", "HOU", feb5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := planMatches([]model.Market{tt.market}, games)
			if len(plan.Assignments) != 0 {
				t.Errorf("got %d assignments, want 0", len(plan.Assignments))
			}
			if plan.Unmatched != 1 {
				t.Errorf("unmatched = %d, want 1", plan.Unmatched)
			}
		})
	}
}

func TestPlanMatchesSingleTeamEitherSlot(t *testing.T) {
	gid := uuid.New()
	feb8 := time.Date(2026, time.February, 8, 0, 0, 0, 0, time.UTC)
	games := []model.Game{{ID: gid, Sport: "nfl", Slug: "nfl-sea-ne-2026-02-08"}}

	t.Run("away slot", func(t *testing.T) {
		plan := planMatches([]model.Market{singleMarket("KXSB-26-SEA", "nfl", "SEA", feb8)}, games)
		if len(plan.Assignments) != 1 || plan.Assignments[0].GameID != gid {
			t.Fatalf("assignments = %+v, want SEA→%s", plan.Assignments, gid)
		}
	})

	t.Run("home slot", func(t *testing.T) {
		plan := planMatches([]model.Market{singleMarket("KXSB-26-NE", "nfl", "NE", feb8)}, games)
		if len(plan.Assignments) != 1 || plan.Assignments[0].GameID != gid {
			t.Fatalf("assignments = %+v, want NE→%s", plan.Assignments, gid)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		plan := planMatches([]model.Market{singleMarket("KXSB-26-DAL", "nfl", "DAL", feb8)}, games)
		if len(plan.Assignments) != 0 || plan.Unmatched != 1 {
			t.Fatalf("plan = %+v, want unmatched", plan)
		}
	})
}

func TestPlanMatchesPartialTwoTeamRowStaysUnmatched(t *testing.T) {
	// A two-team row missing one code must not fall through to the relaxed
	// single-team predicate.
	games := []model.Game{{ID: uuid.New(), Sport: "nba", Slug: "nba-cha-hou-2026-02-05"}}

	m := gameMarket("T1", "nba", "CHA", "", feb5)
	plan := planMatches([]model.Market{m}, games)
	if len(plan.Assignments) != 0 {
		t.Errorf("got %d assignments, want 0", len(plan.Assignments))
	}
	if plan.Unmatched != 1 {
		t.Errorf("Unmatched = %d, want 1", plan.Unmatched)
	}
}

func TestPlanMatchesAmbiguousDoubleheader(t *testing.T) {
	jul4 := time.Date(2026, time.July, 4, 0, 0, 0, 0, time.UTC)
	games := []model.Game{
		{ID: uuid.New(), Sport: "mlb", Slug: "mlb-nyy-bos-2026-07-04"},
		{ID: uuid.New(), Sport: "mlb", Slug: "mlb-bos-nyy-2026-07-04"},
	}

	// The lone code BOS appears in both games on the date.
	plan := planMatches([]model.Market{singleMarket("KXWS-26-BOS", "mlb", "BOS", jul4)}, games)
	if len(plan.Assignments) != 0 {
		t.Errorf("got %d assignments, want 0 for ambiguous code", len(plan.Assignments))
	}
	if len(plan.Ambiguous) != 1 || plan.Ambiguous[0] != "KXWS-26-BOS" {
		t.Errorf("Ambiguous = %v, want [KXWS-26-BOS]", plan.Ambiguous)
	}
}

func TestPlanMatchesDuplicateGameSlugsAreAmbiguous(t *testing.T) {
	games := []model.Game{
		{ID: uuid.New(), Sport: "nba", Slug: "nba-cha-hou-2026-02-05"},
		{ID: uuid.New(), Sport: "nba", Slug: "nba-cha-hou-2026-02-05"},
	}
	markets := []model.Market{gameMarket("T1", "nba", "CHA", "HOU", feb5)}

	plan := planMatches(markets, games)
	if len(plan.Assignments) != 0 || len(plan.Ambiguous) != 1 {
		t.Errorf("plan = %+v, want ambiguous skip", plan)
	}
}

func TestPlanMatchesSharedGameSignal(t *testing.T) {
	gid := uuid.New()
	games := []model.Game{{ID: gid, Sport: "nba", Slug: "nba-cha-hou-2026-02-05"}}
	markets := []model.Market{
		gameMarket("KXNBAGAME-26FEB05CHAHOU-HOU", "nba", "CHA", "HOU", feb5),
		gameMarket("KXNBAGAME-26FEB05CHAHOU-CHA", "nba", "CHA", "HOU", feb5),
	}

	plan := planMatches(markets, games)

	// Both rows still match; the shared game is reported, not rejected.
	if len(plan.Assignments) != 2 {
		t.Fatalf("got %d assignments, want 2", len(plan.Assignments))
	}
	tickers, ok := plan.SharedGames[gid]
	if !ok || len(tickers) != 2 {
		t.Errorf("SharedGames[%s] = %v, want both tickers", gid, tickers)
	}
}

func TestPlanMatchesDeterministicOrder(t *testing.T) {
	gid := uuid.New()
	games := []model.Game{{ID: gid, Sport: "nba", Slug: "nba-cha-hou-2026-02-05"}}
	markets := []model.Market{
		gameMarket("B-TICKER", "nba", "CHA", "HOU", feb5),
		gameMarket("A-TICKER", "nba", "CHA", "HOU", feb5),
	}

	plan := planMatches(markets, games)
	if len(plan.Assignments) != 2 {
		t.Fatalf("got %d assignments, want 2", len(plan.Assignments))
	}
	if plan.Assignments[0].Ticker != "A-TICKER" || plan.Assignments[1].Ticker != "B-TICKER" {
		t.Errorf("order = %s, %s; want lexical ticker order",
			plan.Assignments[0].Ticker, plan.Assignments[1].Ticker)
	}
}

func TestPlanMatchesBadSlugCounted(t *testing.T) {
	games := []model.Game{{ID: uuid.New(), Sport: "nba", Slug: "not a slug"}}
	plan := planMatches([]model.Market{gameMarket("T1", "nba", "CHA", "HOU", feb5)}, games)

	if plan.BadSlugs != 1 {
		t.Errorf("BadSlugs = %d, want 1", plan.BadSlugs)
	}
	if plan.Unmatched != 1 {
		t.Errorf("Unmatched = %d, want 1", plan.Unmatched)
	}
}
