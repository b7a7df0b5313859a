// Package migrations embeds the gateway's SQL schema migrations into the
// binary so no SQL files need to ship alongside it.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory; pass it to
// database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
