// Package stream implements the exchange price feed client.
//
// One Client per ingestion process holds the single upstream connection.
// Subscription state survives reconnects: tickers subscribed while
// disconnected queue up, and every successful connect re-issues the whole
// set in rate-limited batches. Reconnects follow a fixed delay ladder; once
// the attempt cap is exhausted a terminal error is delivered on Fatal and
// the operator restarts the process.
package stream
