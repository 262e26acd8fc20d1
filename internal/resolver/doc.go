// Package resolver assigns exchange market tickers to internal registry
// games. Matching is set-based: one pass loads all unmatched live markets
// and all active games, joins them in memory on sport+date+team codes, and
// writes the assignments in a single transaction. There is no per-ticker
// retry path; a failed pass is simply rerun on the next cycle.
package resolver
