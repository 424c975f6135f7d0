package vector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker around a vector client.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerSettings trips after >=3 requests with a 60% failure ratio
// and half-opens after 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerClient wraps a Client with a circuit breaker so repeated upstream
// failures short-circuit quickly instead of stalling every search.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewBreakerClient wraps client. State changes are logged at WARN.
func NewBreakerClient(client Client, settings BreakerSettings, logger *slog.Logger) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        "vector-search",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= settings.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
	}
}

func (c *BreakerClient) Upsert(ctx context.Context, points []*Point) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Upsert(ctx, points)
	})
	return err
}

func (c *BreakerClient) Search(ctx context.Context, query []float32, limit int, scoreThreshold float64) ([]*ScoredPoint, error) {
	hits, err := c.cb.Execute(func() (any, error) {
		return c.client.Search(ctx, query, limit, scoreThreshold)
	})
	if err != nil {
		return nil, err
	}
	return hits.([]*ScoredPoint), nil
}

func (c *BreakerClient) Close() error {
	return c.client.Close()
}

// ErrorClass buckets a vector client failure for degradation logging.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return "circuit_open"
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return "throttled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream_error"
	}
}

var _ Client = (*BreakerClient)(nil)
