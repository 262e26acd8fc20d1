// Package database provides the PostgreSQL connection pool.
//
// One database holds everything: exchange market rows (with resolved game
// assignments) and the internal game registry. Table layout is documented
// in package store.
package database
