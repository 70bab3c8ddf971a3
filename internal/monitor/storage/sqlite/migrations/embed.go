package migrations

import "embed"

// FS contains embedded SQLite migrations for monitor storage.
//
//go:embed *.sql
var FS embed.FS
