// Package vector defines the vector search client consumed by the semantic
// strategy, plus a local Badger-backed index and a circuit-breaker wrapper
// that classifies upstream degradation.
package vector
