// Package graph maintains an in-memory knowledge graph rebuilt from the
// temporal store. Each build produces an immutable snapshot (dense node and
// edge arenas plus adjacency lists) that is published atomically, so readers
// always traverse a complete graph while a rebuild is in flight.
package graph
