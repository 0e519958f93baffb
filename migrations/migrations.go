// Package migrations embeds the engine's SQL schema migrations for
// bun/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
