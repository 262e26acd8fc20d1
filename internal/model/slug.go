package model

import (
	"strings"
	"time"
)

// GameSlug is the decomposed form of a registry game slug such as
// "nba-cha-hou-2026-02-05". Codes are upper-cased to match parsed tickers.
type GameSlug struct {
	Sport    string
	AwayCode string
	HomeCode string
	Date     time.Time
}

// ParseGameSlug splits a registry slug into its parts. Returns false for
// slugs that do not follow the sport-away-home-date shape.
func ParseGameSlug(slug string) (GameSlug, bool) {
	parts := strings.Split(slug, "-")
	if len(parts) != 6 {
		return GameSlug{}, false
	}

	date, err := time.Parse("2006-01-02", parts[3]+"-"+parts[4]+"-"+parts[5])
	if err != nil {
		return GameSlug{}, false
	}

	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return GameSlug{}, false
	}

	return GameSlug{
		Sport:    strings.ToLower(parts[0]),
		AwayCode: strings.ToUpper(parts[1]),
		HomeCode: strings.ToUpper(parts[2]),
		Date:     date.UTC(),
	}, true
}
