// Package migrations embeds the PostgreSQL schema applied at startup.
package migrations

import "embed"

// Files holds the numbered up/down migration scripts.
//
//go:embed *.sql
var Files embed.FS
