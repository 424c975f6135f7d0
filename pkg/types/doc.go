// Package types defines the bi-temporal data model shared across the engine:
// entities, relationships, mentions, conversations, messages, and the search
// request/result shapes.
//
// Every entity and relationship version carries two timelines: when the fact
// was true in the world (EventTime plus the ValidFrom/ValidUntil interval)
// and when the system learned it (IngestionTime). Versions are append-only;
// superseding a fact closes the old interval and inserts a new row.
package types
