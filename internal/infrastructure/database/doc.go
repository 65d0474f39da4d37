// Package database manages the SQLite connection and schema migrations for
// Device Core.
//
// The wrapper opens the database with the pragmas the service depends on
// (busy timeout, foreign keys, WAL) and pins the pool to a single
// connection, matching SQLite's one-writer model.
//
// Migrations are SQL file pairs embedded into the binary by the top-level
// migrations package:
//
//	20260505_120000_initial_schema.up.sql
//	20260505_120000_initial_schema.down.sql
//
// Migrate applies pending versions in order, each in its own transaction,
// and records them in schema_migrations.
package database
