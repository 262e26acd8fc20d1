// Package api provides the exchange REST client used to discover markets.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Only the market listing and exchange status endpoints are wrapped; live
// prices arrive over the websocket stream, not REST.
package api
