package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contexto-ai/contexto/pkg/embedder"
	"github.com/contexto-ai/contexto/pkg/graph"
	"github.com/contexto-ai/contexto/pkg/types"
	"github.com/contexto-ai/contexto/pkg/vector"
)

// Store is the slice of the temporal store the searcher reads.
type Store interface {
	FindMessagesByText(ctx context.Context, substring string, conversationID string, limit int) ([]*types.Message, error)
	FindEntitiesByText(ctx context.Context, substring string, entityType types.EntityType, limit int) ([]*types.Entity, error)
	GetMessages(ctx context.Context, conversationID string, limit int) ([]*types.Message, error)
	GetMessagesInRange(ctx context.Context, start, end time.Time, limit int) ([]*types.Message, error)
	GetEntitiesInRange(ctx context.Context, start, end time.Time, entityTypes []types.EntityType) ([]*types.Entity, error)
}

// Options tunes the orchestrator. Zero values select the defaults.
type Options struct {
	// StrategyTimeout bounds each strategy's store or upstream calls.
	StrategyTimeout time.Duration
	// SemanticOverfetch multiplies the limit for the vector query so the
	// post-filter still fills the page.
	SemanticOverfetch int
	// GraphSeedLimit caps how many text-matched entities seed the graph
	// expansion.
	GraphSeedLimit int
	// GraphMaxDistance is the expansion radius in hops.
	GraphMaxDistance int
}

func (o Options) withDefaults() Options {
	if o.StrategyTimeout <= 0 {
		o.StrategyTimeout = 5 * time.Second
	}
	if o.SemanticOverfetch <= 0 {
		o.SemanticOverfetch = 2
	}
	if o.GraphSeedLimit <= 0 {
		o.GraphSeedLimit = 5
	}
	if o.GraphMaxDistance <= 0 {
		o.GraphMaxDistance = 2
	}
	return o
}

// HybridSearcher runs search requests against the store, the vector index,
// and the knowledge graph. It is stateless between calls and safe for
// concurrent use.
type HybridSearcher struct {
	store    Store
	graph    *graph.KnowledgeGraph
	vectors  vector.Client
	embedder embedder.Client
	logger   *slog.Logger
	opts     Options
}

// NewHybridSearcher wires a searcher. vectors and embedder may be nil, which
// permanently degrades the semantic strategy to empty results.
func NewHybridSearcher(store Store, kg *graph.KnowledgeGraph, vectors vector.Client, emb embedder.Client, logger *slog.Logger, opts Options) *HybridSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSearcher{
		store:    store,
		graph:    kg,
		vectors:  vectors,
		embedder: emb,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

// Search validates the request, runs the selected strategies, and returns the
// ranked results. In hybrid mode the strategies run concurrently and are
// fused with RRF; in single-strategy modes results keep their native scores.
// Store failures fail the request; vector or embedding failures only empty
// the semantic contribution.
func (s *HybridSearcher) Search(ctx context.Context, req types.SearchRequest) ([]*types.SearchResult, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch req.Mode {
	case types.SearchModeSemantic:
		results := s.semanticSearch(ctx, req)
		return finalize(results, req, false), nil
	case types.SearchModeKeyword:
		results, err := s.keywordSearch(ctx, req)
		if err != nil {
			return nil, err
		}
		return finalize(results, req, false), nil
	case types.SearchModeGraph:
		results, err := s.graphSearch(ctx, req)
		if err != nil {
			return nil, err
		}
		return finalize(results, req, false), nil
	}

	// Hybrid: fan out, fuse.
	var (
		mu       sync.Mutex
		bySource = map[string][]*types.SearchResult{}
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results := s.semanticSearch(gctx, req)
		mu.Lock()
		bySource[types.SourceSemantic] = results
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		results, err := s.keywordSearch(gctx, req)
		if err != nil {
			return err
		}
		mu.Lock()
		bySource[types.SourceKeyword] = results
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		results, err := s.graphSearch(gctx, req)
		if err != nil {
			return err
		}
		mu.Lock()
		bySource[types.SourceGraph] = results
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	fused := fuseRRF([][]*types.SearchResult{
		bySource[types.SourceSemantic],
		bySource[types.SourceKeyword],
		bySource[types.SourceGraph],
	})
	return finalize(fused, req, true), nil
}

// finalize sorts (unless the input is already rank-ordered), truncates to the
// limit, and applies the min score floor.
func finalize(results []*types.SearchResult, req types.SearchRequest, sorted bool) []*types.SearchResult {
	if !sorted {
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	}
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	if req.MinScore <= 0 {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= req.MinScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func (s *HybridSearcher) strategyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StrategyTimeout)
}
