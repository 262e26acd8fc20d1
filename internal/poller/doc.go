// Package poller keeps the exchange market table current.
//
// The market poller:
//   - Lists markets for the configured series on a fixed cadence
//   - Converts the rows that parse as sports games and upserts them
//   - Skips cycles while the exchange reports itself inactive
//   - Signals completed cycles so match passes can follow fresh rows
package poller
