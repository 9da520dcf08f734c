// Package migrations embeds the Postgres migration files.
package migrations

import "embed"

// FS contains the SQL migrations, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
