package tickerid

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseGameMarket(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		want   Parsed
	}{
		{
			name:   "nba six letter block",
			ticker: "KXNBAGAME-26FEB05CHAHOU-HOU",
			want:   Parsed{Sport: "nba", GameDate: date(2026, time.February, 5), AwayCode: "CHA", HomeCode: "HOU"},
		},
		{
			name:   "four letter block splits two plus two",
			ticker: "KXNFLGAME-26JAN11NEKC-KC",
			want:   Parsed{Sport: "nfl", GameDate: date(2026, time.January, 11), AwayCode: "NE", HomeCode: "KC"},
		},
		{
			name:   "seven letter block splits three plus four",
			ticker: "KXNBAGAME-25NOV30OKCUTAH-OKC",
			want:   Parsed{Sport: "nba", GameDate: date(2025, time.November, 30), AwayCode: "OKC", HomeCode: "UTAH"},
		},
		{
			name:   "five letter block with away-slot pair",
			ticker: "KXNFLGAME-26JAN04NEDAL-DAL",
			want:   Parsed{Sport: "nfl", GameDate: date(2026, time.January, 4), AwayCode: "NE", HomeCode: "DAL"},
		},
		{
			name:   "five letter block defaults to three plus two",
			ticker: "KXNFLGAME-26JAN04DALNE-NE",
			want:   Parsed{Sport: "nfl", GameDate: date(2026, time.January, 4), AwayCode: "DAL", HomeCode: "NE"},
		},
		{
			name:   "five letter block with both pairs known stays three plus two",
			ticker: "KXNFLGAME-26JAN04NEBLA-LA",
			want:   Parsed{Sport: "nfl", GameDate: date(2026, time.January, 4), AwayCode: "NEB", HomeCode: "LAK"},
		},
		{
			name:   "away code aliased to registry form",
			ticker: "KXNHLGAME-26MAR01VGKCOL-COL",
			want:   Parsed{Sport: "nhl", GameDate: date(2026, time.March, 1), AwayCode: "LAS", HomeCode: "COL"},
		},
		{
			name:   "event id without side suffix",
			ticker: "KXNBAGAME-26FEB05CHAHOU",
			want:   Parsed{Sport: "nba", GameDate: date(2026, time.February, 5), AwayCode: "CHA", HomeCode: "HOU"},
		},
		{
			name:   "lower case input",
			ticker: "kxnbagame-26feb05chahou-hou",
			want:   Parsed{Sport: "nba", GameDate: date(2026, time.February, 5), AwayCode: "CHA", HomeCode: "HOU"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.ticker, time.Time{})
			if !ok {
				t.Fatalf("Parse(%q) not ok, want parsed", tt.ticker)
			}
			if got.Sport != tt.want.Sport {
				t.Errorf("Sport = %q, want %q", got.Sport, tt.want.Sport)
			}
			if !got.GameDate.Equal(tt.want.GameDate) {
				t.Errorf("GameDate = %v, want %v", got.GameDate, tt.want.GameDate)
			}
			if got.AwayCode != tt.want.AwayCode {
				t.Errorf("AwayCode = %q, want %q", got.AwayCode, tt.want.AwayCode)
			}
			if got.HomeCode != tt.want.HomeCode {
				t.Errorf("HomeCode = %q, want %q", got.HomeCode, tt.want.HomeCode)
			}
			if got.SingleCode != "" {
				t.Errorf("SingleCode = %q, want empty for game market", got.SingleCode)
			}
			if got.SingleTeam() {
				t.Error("SingleTeam() = true, want false")
			}
		})
	}
}

func TestParseSingleTeam(t *testing.T) {
	closeTime := time.Date(2027, time.February, 8, 23, 0, 0, 0, time.UTC)

	got, ok := Parse("KXSB-26-SEA", closeTime)
	if !ok {
		t.Fatal("Parse not ok, want parsed")
	}
	if got.Sport != "nfl" {
		t.Errorf("Sport = %q, want %q", got.Sport, "nfl")
	}
	if got.SingleCode != "SEA" {
		t.Errorf("SingleCode = %q, want %q", got.SingleCode, "SEA")
	}
	if !got.SingleTeam() {
		t.Error("SingleTeam() = false, want true")
	}
	if got.AwayCode != "" || got.HomeCode != "" {
		t.Errorf("AwayCode/HomeCode = %q/%q, want empty", got.AwayCode, got.HomeCode)
	}

	// Ticker year token (26) overrides the close-time year (2027).
	want := date(2026, time.February, 8)
	if !got.GameDate.Equal(want) {
		t.Errorf("GameDate = %v, want %v", got.GameDate, want)
	}
}

func TestParseSingleTeamYearAgrees(t *testing.T) {
	closeTime := time.Date(2026, time.February, 8, 23, 0, 0, 0, time.UTC)

	got, ok := Parse("KXSB-26-SEA", closeTime)
	if !ok {
		t.Fatal("Parse not ok, want parsed")
	}
	if want := date(2026, time.February, 8); !got.GameDate.Equal(want) {
		t.Errorf("GameDate = %v, want %v", got.GameDate, want)
	}
}

func TestParseSingleTeamNoCloseTime(t *testing.T) {
	if _, ok := Parse("KXSB-26-SEA", time.Time{}); ok {
		t.Error("Parse ok without close time, want not ok")
	}
}

func TestParseUnparseable(t *testing.T) {
	closeTime := time.Date(2026, time.February, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		ticker string
	}{
		{"empty", ""},
		{"unrelated series", "GAZPROM-UP-DEC"},
		{"non game kx series", "KXHIGHNY-26FEB05-T55"},
		{"missing date token", "KXNBAGAME-FEB05CHAHOU-HOU"},
		{"day does not exist", "KXNBAGAME-26FEB30CHAHOU-HOU"},
		{"team block too short", "KXNBAGAME-26FEB05CHA-CHA"},
		{"team block too long", "KXNBAGAME-26FEB05CHARHOUST-HOU"},
		{"too many segments", "KXNBAGAME-26FEB05CHAHOU-HOU-X"},
		{"single team bad year token", "KXSB-2026-SEA"},
		{"single team bad code", "KXSB-26-S"},
		{"bare series", "KXNBAGAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := Parse(tt.ticker, closeTime); ok {
				t.Errorf("Parse(%q) = %+v, want not ok", tt.ticker, got)
			}
		})
	}
}

func TestSplitTeamBlockReassembles(t *testing.T) {
	blocks := []string{"NEKC", "NEDAL", "DALNE", "CHAHOU", "OKCUTAH", "NEBLA", "VGKCOL"}

	for _, block := range blocks {
		away, home, ok := splitTeamBlock(block)
		if !ok {
			t.Errorf("splitTeamBlock(%q) not ok", block)
			continue
		}
		if away == "" || home == "" {
			t.Errorf("splitTeamBlock(%q) = %q, %q, want both non-empty", block, away, home)
		}
		if away+home != block {
			t.Errorf("splitTeamBlock(%q) = %q + %q, does not reassemble", block, away, home)
		}
	}
}

func TestSideCode(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		want   string
	}{
		{"plain side", "KXNBAGAME-26FEB05CHAHOU-HOU", "HOU"},
		{"aliased side", "KXNFLGAME-26JAN04NEBLA-LA", "LAK"},
		{"lower case", "kxnbagame-26feb05chahou-hou", "HOU"},
		{"no separator", "KXNBAGAME", ""},
		{"trailing separator", "KXNBAGAME-", ""},
		{"numeric side", "KXHIGH-26-55", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SideCode(tt.ticker); got != tt.want {
				t.Errorf("SideCode(%q) = %q, want %q", tt.ticker, got, tt.want)
			}
		})
	}
}

func TestAlias(t *testing.T) {
	if got := Alias("VGK"); got != "LAS" {
		t.Errorf("Alias(VGK) = %q, want LAS", got)
	}
	if got := Alias("BOS"); got != "BOS" {
		t.Errorf("Alias(BOS) = %q, want BOS", got)
	}
}
