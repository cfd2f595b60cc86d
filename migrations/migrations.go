// Package migrations embeds the schema for each supported store driver.
package migrations

import "embed"

// Postgres holds the postgres schema migrations, applied in file-name order.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the sqlite schema migrations, applied in file-name order.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
