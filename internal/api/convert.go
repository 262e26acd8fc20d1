package api

import (
	"time"

	"github.com/gamelinehq/marketfeed/internal/model"
	"github.com/gamelinehq/marketfeed/internal/tickerid"
)

// ParseTimestamp parses an ISO 8601 timestamp. Returns the zero time for
// empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t
}

// ToModel converts a wire market to a model.Market. The second return is
// false when the ticker fits no known game grammar; those markets are not
// sports games and are skipped at ingest.
func (m *APIMarket) ToModel() (model.Market, bool) {
	closeTime := ParseTimestamp(m.CloseTime)

	parsed, ok := tickerid.Parse(m.Ticker, closeTime)
	if !ok {
		return model.Market{}, false
	}

	return model.Market{
		Ticker:     m.Ticker,
		EventID:    m.EventTicker,
		Title:      m.Title,
		Status:     m.Status,
		CloseTime:  closeTime,
		Sport:      parsed.Sport,
		AwayCode:   parsed.AwayCode,
		HomeCode:   parsed.HomeCode,
		SingleCode: parsed.SingleCode,
		GameDate:   parsed.GameDate,
		YesBid:     m.YesBid,
		YesAsk:     m.YesAsk,
		NoBid:      m.NoBid,
		NoAsk:      m.NoAsk,
		UpdatedAt:  time.Now().UTC(),
	}, true
}
