package fanout

import (
	"github.com/gamelinehq/marketfeed/internal/model"
	"github.com/gamelinehq/marketfeed/internal/stream"
	"github.com/gamelinehq/marketfeed/internal/tickerid"
)

// Orient turns a raw tick into a two-sided display price for the mapped
// game. The ticker's trailing side code names the team its yes side pays
// on: that team's slot gets the yes prices, the opposite slot gets the no
// prices. The mapping's codes are registry forms (derived from the game
// slug), and SideCode aliases the exchange token into the same form before
// comparing. Returns ok=false when the side code matches neither slot.
func Orient(tick stream.Tick, mapping model.TickerMapping) (model.PriceUpdate, bool) {
	side := tickerid.SideCode(tick.Ticker)
	if side == "" {
		return model.PriceUpdate{}, false
	}

	update := model.PriceUpdate{
		GameID:     mapping.GameID,
		Ticker:     tick.Ticker,
		ExchangeTS: tick.Timestamp,
		ReceivedAt: tick.ReceivedAt,
	}

	yes := model.PriceSide{Bid: tick.YesBid, Ask: tick.YesAsk}
	no := model.PriceSide{Bid: tick.NoBid, Ask: tick.NoAsk}

	switch side {
	case mapping.AwayCode:
		update.Away, update.Home = yes, no
	case mapping.HomeCode:
		update.Home, update.Away = yes, no
	default:
		return model.PriceUpdate{}, false
	}
	return update, true
}
