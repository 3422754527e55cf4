// Package migrations embeds the ledger schema so binaries and tests can
// migrate without shipping the SQL files alongside them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
