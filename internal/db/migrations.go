package db

import "embed"

// migrationFS embeds the schema migrations applied by Open. Grounded on
// custodia-labs-sercha-cli's embedded-migrations layout, retargeted from a
// hand-rolled runner to golang-migrate/migrate/v4's iofs source driver —
// the prior codebase already depends on golang-migrate (its own server.go
// blank-imports the postgres/file drivers as a placeholder); here the
// dependency is load-bearing, driving real migrations against SQLite.
//
//go:embed migrations/*.sql
var migrationFS embed.FS
