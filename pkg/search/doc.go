// Package search orchestrates hybrid retrieval over three strategies:
// semantic (vector similarity), keyword (substring scan of messages and
// entities), and graph (seed entities expanded through the knowledge graph).
// In hybrid mode the strategies run concurrently and their rankings are fused
// with reciprocal rank fusion; a failing vector upstream degrades the
// semantic strategy to empty results instead of failing the search.
package search
