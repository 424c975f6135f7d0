// Package contexto is a hybrid retrieval and knowledge-graph engine for
// conversation history. It persists messages, entities, and relationships in
// a bi-temporal SQLite store, maintains an in-memory knowledge graph rebuilt
// from that store, and answers search requests by fusing semantic, keyword,
// and graph retrieval strategies.
//
// The Engine type in this package is the top-level entry point; the HTTP and
// MCP servers under cmd/ are thin layers over it.
package contexto
