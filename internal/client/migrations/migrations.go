// Package migrations embeds the local cache schema migrations applied by
// goose at startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
