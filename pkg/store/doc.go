// Package store persists the bi-temporal knowledge base in SQLite. Entity and
// relationship versions are append-only rows; validity queries filter on the
// valid_from/valid_until interval instead of mutating history.
package store
