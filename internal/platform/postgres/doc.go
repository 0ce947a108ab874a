// Package postgres provides PostgreSQL-backed implementations of the store
// interfaces, plus the schema migrations they depend on.
package postgres
