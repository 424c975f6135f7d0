package vector

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrInvalidVector is returned when a point or query carries no vector.
var ErrInvalidVector = errors.New("vector cannot be empty")

// Payload is the metadata stored alongside a vector point. For message
// points Content is the message text.
type Payload struct {
	Content        string    `json:"content"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitzero"`
}

// Point is one stored embedding with its payload.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a search hit with its similarity score.
type ScoredPoint struct {
	Point
	Score float64 `json:"score"`
}

// Client is the vector search boundary. The semantic strategy treats any
// error from it as degradation, not failure.
type Client interface {
	// Upsert stores or replaces points by id.
	Upsert(ctx context.Context, points []*Point) error

	// Search returns up to limit points ordered by cosine similarity to the
	// query vector, dropping hits below scoreThreshold.
	Search(ctx context.Context, query []float32, limit int, scoreThreshold float64) ([]*ScoredPoint, error)

	Close() error
}

// Cosine computes cosine similarity. Zero-magnitude inputs score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
