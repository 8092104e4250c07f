// Package migrations embeds the SQL schema files for the local SQLite
// key-value store and the PostgreSQL remote document store.
package migrations

import "embed"

// FS holds sqlite/*.sql and postgres/*.sql
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
