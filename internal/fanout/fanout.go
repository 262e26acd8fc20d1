// Package fanout moves price updates from the single ingestion worker to
// every front-end worker over a shared broadcast channel, one channel per
// game. Delivery is best-effort, last-value-wins: a dropped update is
// superseded by the next tick.
package fanout

import (
	"github.com/google/uuid"
)

const (
	channelPrefix  = "marketfeed:prices:"
	channelPattern = channelPrefix + "*"
)

// channelFor returns the broadcast channel name for a game.
func channelFor(gameID uuid.UUID) string {
	return channelPrefix + gameID.String()
}
