// Package embedder provides text embedding clients for vector
// representations: an OpenAI-backed client and a deterministic token-hash
// embedder for offline use. Both produce L2-normalized vectors so cosine
// scores are comparable across providers.
package embedder
