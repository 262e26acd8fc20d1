// Package mapping maintains the in-process ticker-to-game cache.
//
// The cache is bounded: when it reaches capacity, the least recently
// accessed tenth of its entries is evicted to make room. Recency is an
// access counter, not wall-clock time, so a ticker that trades constantly
// stays resident no matter how old its mapping row is.
//
// Reloads come from the database (the single source of truth) and are
// triggered by registry change events, with a periodic fallback in case an
// event is missed. A Redis snapshot warms cold starts only.
package mapping
