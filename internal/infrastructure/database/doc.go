// Package database manages the gateway's SQLite database (mattn/go-sqlite3).
//
// The only persistent data is the access audit log. Schema changes are
// forward-only SQL files embedded by the migrations package and applied at
// startup with Migrate.
package database
