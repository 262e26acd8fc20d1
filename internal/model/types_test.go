package model

import (
	"testing"
	"time"
)

func TestIsLiveStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusOpen, true},
		{StatusActive, true},
		{StatusUnopened, false},
		{StatusClosed, false},
		{StatusSettled, false},
		{"", false},
		{"OPEN", false}, // statuses arrive lower-case from the exchange
	}

	for _, tt := range tests {
		if got := IsLiveStatus(tt.status); got != tt.want {
			t.Errorf("IsLiveStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestDateOnly(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "strips time of day",
			in:   time.Date(2026, 2, 5, 19, 30, 12, 999, time.UTC),
			want: time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "converts zone before truncating",
			in:   time.Date(2026, 2, 5, 22, 0, 0, 0, est), // 03:00 UTC next day
			want: time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight stays put",
			in:   time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DateOnly(tt.in); !got.Equal(tt.want) {
				t.Errorf("DateOnly(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarketSingleTeam(t *testing.T) {
	game := Market{Ticker: "KXNBAGAME-26FEB05CHAHOU-HOU", AwayCode: "CHA", HomeCode: "HOU"}
	if game.SingleTeam() {
		t.Error("two-team market reported as single-team")
	}

	single := Market{Ticker: "KXSB-26-SEA", SingleCode: "SEA"}
	if !single.SingleTeam() {
		t.Error("single-team market not reported as single-team")
	}
}
