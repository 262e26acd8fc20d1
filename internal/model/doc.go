// Package model defines shared data types for the marketfeed service.
//
// Conventions:
//   - Prices: integer cents (0-100 = $0.00-$1.00)
//   - Game dates: date-only time.Time values normalized to midnight UTC
//   - IDs: string for exchange tickers, uuid.UUID for registry game ids
package model
