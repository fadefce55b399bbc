// Package migrations embeds the schema of the SQLite string store.
package migrations

import "embed"

// Files holds the numbered up/down migrations applied by CreateDatabase.
//
//go:embed *.sql
var Files embed.FS
