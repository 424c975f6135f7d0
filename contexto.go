package contexto

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/contexto-ai/contexto/pkg/config"
	"github.com/contexto-ai/contexto/pkg/embedder"
	"github.com/contexto-ai/contexto/pkg/extract"
	"github.com/contexto-ai/contexto/pkg/graph"
	"github.com/contexto-ai/contexto/pkg/search"
	"github.com/contexto-ai/contexto/pkg/store"
	"github.com/contexto-ai/contexto/pkg/vector"
)

// ErrUnknownOperation is returned for graph query operations the engine does
// not recognize.
var ErrUnknownOperation = errors.New("unknown graph operation")

// Engine wires the temporal store, vector index, embedder, extractor,
// knowledge graph, and search orchestrator into one entry point. It is safe
// for concurrent use.
type Engine struct {
	store     store.TemporalStore
	vectors   vector.Client
	embedder  embedder.Client
	extractor *extract.Extractor
	graph     *graph.KnowledgeGraph
	searcher  *search.HybridSearcher
	logger    *slog.Logger
}

// New builds an Engine from config: SQLite store, Badger vector index behind
// a circuit breaker, and the configured embedding provider.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	idx, err := vector.OpenBadger(cfg.Vector.Path)
	if err != nil {
		st.Close()
		return nil, err
	}
	breaker := vector.NewBreakerClient(idx, vector.BreakerSettings{
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
		Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
		ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
	}, logger)

	emb, err := newEmbedder(cfg.Embedding)
	if err != nil {
		breaker.Close()
		st.Close()
		return nil, err
	}

	opts := search.Options{
		StrategyTimeout:  cfg.Search.StrategyTimeout,
		GraphSeedLimit:   cfg.Search.GraphSeedLimit,
		GraphMaxDistance: cfg.Search.GraphMaxDistance,
	}
	return NewWithComponents(st, breaker, emb, logger, opts), nil
}

// NewWithComponents assembles an Engine from already-constructed parts.
// Tests and embedders with custom stacks use this directly.
func NewWithComponents(st store.TemporalStore, vectors vector.Client, emb embedder.Client, logger *slog.Logger, opts search.Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	kg := graph.NewKnowledgeGraph(st, logger)
	return &Engine{
		store:     st,
		vectors:   vectors,
		embedder:  emb,
		extractor: extract.NewExtractor(),
		graph:     kg,
		searcher:  search.NewHybridSearcher(st, kg, vectors, emb, logger, opts),
		logger:    logger,
	}
}

func newEmbedder(cfg config.EmbeddingConfig) (embedder.Client, error) {
	switch cfg.Provider {
	case "openai":
		return embedder.NewOpenAIClient(embedder.OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "", "hash":
		return embedder.NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Graph exposes the knowledge graph for read-only inspection.
func (e *Engine) Graph() *graph.KnowledgeGraph {
	return e.graph
}

// Close releases the store and vector index.
func (e *Engine) Close() error {
	var errs []error
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.vectors != nil {
		if err := e.vectors.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
