// Package sqldocs exposes the store DDL bundles directly from the docs tree.
// The sqlite and postgres drivers execute these at open.
package sqldocs

import _ "embed"

// SQLite contains the state-table DDL for the sqlite driver.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the state-table DDL for the postgres driver.
//
//go:embed postgres.sql
var Postgres string
