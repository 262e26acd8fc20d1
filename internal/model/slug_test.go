package model

import (
	"testing"
	"time"
)

func TestParseGameSlug(t *testing.T) {
	got, ok := ParseGameSlug("nba-cha-hou-2026-02-05")
	if !ok {
		t.Fatal("ParseGameSlug not ok, want parsed")
	}
	if got.Sport != "nba" {
		t.Errorf("Sport = %q, want nba", got.Sport)
	}
	if got.AwayCode != "CHA" || got.HomeCode != "HOU" {
		t.Errorf("codes = %q/%q, want CHA/HOU", got.AwayCode, got.HomeCode)
	}
	if want := time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC); !got.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", got.Date, want)
	}
}

func TestParseGameSlugRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"nba-cha-hou",
		"nba-cha-hou-2026-02",
		"nba-cha-hou-2026-02-05-extra",
		"nba-cha-hou-2026-13-05",
		"-cha-hou-2026-02-05",
		"nba--hou-2026-02-05",
	}
	for _, slug := range bad {
		if _, ok := ParseGameSlug(slug); ok {
			t.Errorf("ParseGameSlug(%q) ok, want rejected", slug)
		}
	}
}
