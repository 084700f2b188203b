// Package database stores the checkbox document in PostgreSQL.
//
// Uses pgx for connection pooling and tern for embedded schema migrations.
// The document lives in a single-row table and is replaced with an upsert on every save.
package database
