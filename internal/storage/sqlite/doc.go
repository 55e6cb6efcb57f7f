// Package sqlite implements the Output Store and Cursor Store on a single
// SQLite database file using the pure-Go modernc.org/sqlite driver.
//
// Records live in an append-only table ordered by an autoincrement sequence.
// The cursor is a single row replaced inside a transaction, which gives the
// same all-or-nothing guarantee as the file backend's rename.
package sqlite
