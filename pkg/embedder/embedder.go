package embedder

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when there is no text to embed.
var ErrEmptyInput = errors.New("no text to embed")

// Client generates embeddings. The semantic strategy treats any error from it
// as degradation of that strategy, not of the whole search.
type Client interface {
	// Embed generates one embedding per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle is a convenience wrapper for one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding width this client produces.
	Dimensions() int

	Close() error
}
